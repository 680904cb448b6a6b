package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/headtrack/internal/mapping"
	"github.com/banshee-data/headtrack/internal/pipeline"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/reltrans"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsFileMatchesDefaultSettings(t *testing.T) {
	cfg := MustLoadDefaultSettings()
	if diff := cmp.Diff(DefaultSettings(), cfg); diff != "" {
		t.Errorf("defaults file drifted (-code +file):\n%s", diff)
	}
}

func TestEmptySettingsUseDefaults(t *testing.T) {
	cfg := &Settings{}
	def := DefaultSettings()

	assert.Equal(t, def.PipelineSettings(), cfg.PipelineSettings())
	assert.Equal(t, pipeline.Settings{CenterAtStartup: true}, cfg.PipelineSettings())
	assert.False(t, cfg.FilterEnabled())

	table := cfg.MappingTable()
	for i := range table {
		assert.Equal(t, i, table[i].Source)
		assert.Equal(t, 3.0, table.Map(3, pose.Axis(i)))
	}
}

func TestLoadSettings(t *testing.T) {
	path := writeConfig(t, "session.json", `{
  "center_at_startup": false,
  "reltrans_mode": "non_center",
  "reltrans_disable_src_roll": true,
  "reltrans_disable_tz": true,
  "neck_enable": true,
  "neck_z": 8.5,
  "filter_rotation_alpha": 0.3,
  "axes": [
    {"source": 1, "invert": true, "zero": 2},
    {"source": 6},
    {},
    {"gain": 2, "limit": 90, "alt_enabled": true, "alt_gain": 1}
  ]
}`)
	cfg, err := LoadSettings(path)
	require.NoError(t, err)

	ps := cfg.PipelineSettings()
	assert.False(t, ps.CenterAtStartup)
	assert.Equal(t, reltrans.NonCenter, ps.RelTransMode)
	assert.Equal(t, pose.Mask{false, false, true, false, false, true}, ps.RelTransDisable)
	assert.True(t, ps.NeckEnable)
	assert.Equal(t, 8.5, ps.NeckZ)

	tr, rot := cfg.GetFilterAlphas()
	assert.Equal(t, 1.0, tr)
	assert.Equal(t, 0.3, rot)
	assert.True(t, cfg.FilterEnabled())

	table := cfg.MappingTable()
	assert.Equal(t, 1, table[pose.TX].Source)
	assert.True(t, table[pose.TX].Invert)
	assert.Equal(t, 2.0, table[pose.TX].Zero)
	assert.True(t, table[pose.TY].Disabled())
	assert.Equal(t, int(pose.TZ), table[pose.TZ].Source)

	yaw := &table[pose.Yaw]
	assert.Equal(t, mapping.Linear{Gain: 2, Limit: 90}, yaw.Main)
	assert.Equal(t, 90.0, table.Map(60, pose.Yaw))
	assert.Equal(t, -30.0, table.Map(-30, pose.Yaw), "alt curve for negative input")
	assert.Equal(t, mapping.Identity{}, table[pose.Roll].Main, "unconfigured axis")
}

func TestLoadSettings_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"extension", "session.toml", `{}`, "extension"},
		{"syntax", "session.json", `{"neck_z": }`, "parse config JSON"},
		{"yaml syntax", "session.yaml", "neck_z: [", "parse config YAML"},
		{"yaml invalid", "session.yml", "neck_z: -1\n", "neck_z"},
		{"mode", "session.json", `{"reltrans_mode": "sometimes"}`, "unknown reltrans mode"},
		{"neck", "session.json", `{"neck_z": -1}`, "neck_z"},
		{"alpha", "session.json", `{"filter_translation_alpha": 0}`, "filter_translation_alpha"},
		{"source", "session.json", `{"axes": [{"source": 7}]}`, "axes[0].source"},
		{"limit", "session.json", `{"axes": [{}, {"alt_limit": -2}]}`, "axes[1].alt_limit"},
		{"too many axes", "session.json", `{"axes": [{},{},{},{},{},{},{}]}`, "at most 6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSettings(writeConfig(t, tt.file, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSettings_YAML(t *testing.T) {
	body := `
center_at_startup: false
reltrans_mode: non_center
neck_enable: true
neck_z: 12
axes:
  - source: 0
  - source: 1
  - source: 2
  - source: 3
    gain: 2
    limit: 90
`
	cfg, err := LoadSettings(writeConfig(t, "session.yaml", body))
	require.NoError(t, err)

	assert.False(t, cfg.GetCenterAtStartup())
	assert.Equal(t, reltrans.NonCenter, cfg.GetRelTransMode())
	assert.True(t, cfg.GetNeckEnable())
	assert.Equal(t, 12.0, cfg.GetNeckZ())
	assert.Equal(t, mapping.Linear{Gain: 2, Limit: 90}, cfg.MappingTable()[pose.Yaw].Main)
}

func TestValidate_ReportsFirstFieldInOrder(t *testing.T) {
	cfg := &Settings{
		FilterTranslationAlpha: ptrFloat64(0),
		FilterRotationAlpha:    ptrFloat64(2),
		Axes:                   []AxisSettings{{Limit: ptrFloat64(-1), AltLimit: ptrFloat64(-1)}},
	}
	for i := 0; i < 20; i++ {
		assert.ErrorContains(t, cfg.Validate(), "filter_translation_alpha")
	}

	cfg.FilterTranslationAlpha, cfg.FilterRotationAlpha = nil, nil
	for i := 0; i < 20; i++ {
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "axes[0].limit")
		assert.NotContains(t, err.Error(), "alt_limit")
	}
}

func TestLoadSettings_MissingAndLarge(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "stat")

	big := `{"neck_z": 1` + strings.Repeat(" ", 1024*1024) + `}`
	_, err = LoadSettings(writeConfig(t, "big.json", big))
	assert.ErrorContains(t, err, "too large")
}
