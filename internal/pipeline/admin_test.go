package pipeline

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/headtrack/internal/flags"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localHostRequest creates a request that passes tsweb's loopback check.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func newAdminHarness(t *testing.T) (*harness, *http.ServeMux) {
	t.Helper()
	h := newHarness(Settings{}, nil)
	mux := http.NewServeMux()
	h.p.AttachAdminRoutes(mux)
	return h, mux
}

func TestAdmin_Pose(t *testing.T) {
	h, mux := newAdminHarness(t)
	_ = h.step(pose.Pose{})
	in := pose.Pose{1, 2, 3, 0, 0, 0}
	_ = h.step(in)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/pose", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got poseSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, in, got.Raw)
	assert.InDelta(t, 2, got.Mapped[pose.TY], 1e-6)
	assert.False(t, got.Zero)
	assert.Contains(t, got.Flags, "enabled-source")
}

func TestAdmin_Actions(t *testing.T) {
	tests := []struct {
		path  string
		flag  flags.Flag
		after bool
	}{
		{"/debug/center", flags.Center, true},
		{"/debug/toggle-zero", flags.Zero, true},
		{"/debug/toggle-enabled", flags.EnabledSource, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h, mux := newAdminHarness(t)
			h.p.flags.Set(flags.Center, false)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, localHostRequest(http.MethodPost, tt.path, nil))
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "ok\n", w.Body.String())
			assert.Equal(t, tt.after, h.p.flags.Get(tt.flag))
		})
	}
}

func TestAdmin_ActionsRequirePost(t *testing.T) {
	h, mux := newAdminHarness(t)
	h.p.flags.Set(flags.Center, false)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, localHostRequest(http.MethodGet, "/debug/center", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.False(t, h.p.flags.Get(flags.Center))
}
