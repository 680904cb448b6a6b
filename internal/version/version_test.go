package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, sha, bt := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = v, sha, bt })

	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2026-01-02"
	assert.Equal(t, "headtrack 1.2.0 (abc123, built 2026-01-02)", String())
}
