package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/headtrack/internal/mapping"
	"github.com/banshee-data/headtrack/internal/pipeline"
	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/reltrans"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical settings defaults file.
const DefaultConfigPath = "config/headtrack.defaults.json"

// Settings is the persisted session configuration. Every field is optional;
// the Get* methods supply defaults for omitted ones, so partial files are
// safe.
type Settings struct {
	CenterAtStartup *bool `json:"center_at_startup,omitempty" yaml:"center_at_startup,omitempty"`

	// Relative translation
	RelTransMode            *string `json:"reltrans_mode,omitempty" yaml:"reltrans_mode,omitempty"` // disabled, always or non_center
	RelTransDisableSrcYaw   *bool   `json:"reltrans_disable_src_yaw,omitempty" yaml:"reltrans_disable_src_yaw,omitempty"`
	RelTransDisableSrcPitch *bool   `json:"reltrans_disable_src_pitch,omitempty" yaml:"reltrans_disable_src_pitch,omitempty"`
	RelTransDisableSrcRoll  *bool   `json:"reltrans_disable_src_roll,omitempty" yaml:"reltrans_disable_src_roll,omitempty"`
	RelTransDisableTX       *bool   `json:"reltrans_disable_tx,omitempty" yaml:"reltrans_disable_tx,omitempty"`
	RelTransDisableTY       *bool   `json:"reltrans_disable_ty,omitempty" yaml:"reltrans_disable_ty,omitempty"`
	RelTransDisableTZ       *bool   `json:"reltrans_disable_tz,omitempty" yaml:"reltrans_disable_tz,omitempty"`

	NeckEnable *bool    `json:"neck_enable,omitempty" yaml:"neck_enable,omitempty"`
	NeckZ      *float64 `json:"neck_z,omitempty" yaml:"neck_z,omitempty"` // cm

	// Smoothing; both in (0, 1], 1 disables.
	FilterTranslationAlpha *float64 `json:"filter_translation_alpha,omitempty" yaml:"filter_translation_alpha,omitempty"`
	FilterRotationAlpha    *float64 `json:"filter_rotation_alpha,omitempty" yaml:"filter_rotation_alpha,omitempty"`

	// Axes are in output order TX, TY, TZ, yaw, pitch, roll. Missing
	// entries keep the identity mapping.
	Axes []AxisSettings `json:"axes,omitempty" yaml:"axes,omitempty"`
}

// AxisSettings configures one output channel.
type AxisSettings struct {
	Source     *int     `json:"source,omitempty" yaml:"source,omitempty"` // 0..5, or 6 for none
	Invert     *bool    `json:"invert,omitempty" yaml:"invert,omitempty"`
	Zero       *float64 `json:"zero,omitempty" yaml:"zero,omitempty"`
	AltEnabled *bool    `json:"alt_enabled,omitempty" yaml:"alt_enabled,omitempty"`
	Gain       *float64 `json:"gain,omitempty" yaml:"gain,omitempty"`
	Limit      *float64 `json:"limit,omitempty" yaml:"limit,omitempty"` // 0 disables clamping
	AltGain    *float64 `json:"alt_gain,omitempty" yaml:"alt_gain,omitempty"`
	AltLimit   *float64 `json:"alt_limit,omitempty" yaml:"alt_limit,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultSettings returns the values the Get* methods fall back to, with
// every field set.
func DefaultSettings() *Settings {
	cfg := &Settings{
		CenterAtStartup:         ptrBool(true),
		RelTransMode:            ptrString(reltrans.Disabled.String()),
		RelTransDisableSrcYaw:   ptrBool(false),
		RelTransDisableSrcPitch: ptrBool(false),
		RelTransDisableSrcRoll:  ptrBool(false),
		RelTransDisableTX:       ptrBool(false),
		RelTransDisableTY:       ptrBool(false),
		RelTransDisableTZ:       ptrBool(false),
		NeckEnable:              ptrBool(false),
		NeckZ:                   ptrFloat64(0),
		FilterTranslationAlpha:  ptrFloat64(1),
		FilterRotationAlpha:     ptrFloat64(1),
	}
	for i := 0; i < pose.NumAxes; i++ {
		cfg.Axes = append(cfg.Axes, AxisSettings{
			Source:     ptrInt(i),
			Invert:     ptrBool(false),
			Zero:       ptrFloat64(0),
			AltEnabled: ptrBool(false),
		})
	}
	return cfg
}

// LoadSettings loads Settings from a JSON or YAML file, chosen by
// extension (.json, .yaml or .yml). The file must be at most 1MB.
func LoadSettings(path string) (*Settings, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Settings{}
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultSettings loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. It panics if the
// file cannot be loaded and is intended for tests.
func MustLoadDefaultSettings() *Settings {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSettings(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// namedValue pairs an optional field with its JSON name, in check order.
type namedValue struct {
	name string
	v    *float64
}

// Validate checks the values that are set, in field order, and reports
// the first problem.
func (c *Settings) Validate() error {
	if c.RelTransMode != nil {
		if _, err := reltrans.ParseMode(*c.RelTransMode); err != nil {
			return err
		}
	}
	if c.NeckZ != nil && *c.NeckZ < 0 {
		return fmt.Errorf("neck_z must be non-negative, got %g", *c.NeckZ)
	}
	for _, f := range []namedValue{
		{"filter_translation_alpha", c.FilterTranslationAlpha},
		{"filter_rotation_alpha", c.FilterRotationAlpha},
	} {
		if f.v != nil && !(*f.v > 0 && *f.v <= 1) {
			return fmt.Errorf("%s must be in (0, 1], got %g", f.name, *f.v)
		}
	}

	if len(c.Axes) > pose.NumAxes {
		return fmt.Errorf("at most %d axes may be configured, got %d", pose.NumAxes, len(c.Axes))
	}
	for i, a := range c.Axes {
		if a.Source != nil && (*a.Source < 0 || *a.Source > mapping.SourceDisabled) {
			return fmt.Errorf("axes[%d].source must be between 0 and %d, got %d", i, mapping.SourceDisabled, *a.Source)
		}
		for _, f := range []namedValue{{"limit", a.Limit}, {"alt_limit", a.AltLimit}} {
			if f.v != nil && *f.v < 0 {
				return fmt.Errorf("axes[%d].%s must be non-negative, got %g", i, f.name, *f.v)
			}
		}
	}
	return nil
}

// GetCenterAtStartup returns center_at_startup or true.
func (c *Settings) GetCenterAtStartup() bool {
	if c.CenterAtStartup == nil {
		return true
	}
	return *c.CenterAtStartup
}

// GetRelTransMode returns the parsed reltrans_mode or Disabled.
func (c *Settings) GetRelTransMode() reltrans.Mode {
	if c.RelTransMode == nil {
		return reltrans.Disabled
	}
	m, err := reltrans.ParseMode(*c.RelTransMode)
	if err != nil {
		return reltrans.Disabled
	}
	return m
}

// GetRelTransDisable returns the compensation mask: translation channels
// TX..TZ and source angles Yaw..Roll.
func (c *Settings) GetRelTransDisable() pose.Mask {
	var m pose.Mask
	for axis, v := range map[pose.Axis]*bool{
		pose.TX:    c.RelTransDisableTX,
		pose.TY:    c.RelTransDisableTY,
		pose.TZ:    c.RelTransDisableTZ,
		pose.Yaw:   c.RelTransDisableSrcYaw,
		pose.Pitch: c.RelTransDisableSrcPitch,
		pose.Roll:  c.RelTransDisableSrcRoll,
	} {
		m[axis] = v != nil && *v
	}
	return m
}

// GetNeckEnable returns neck_enable or false.
func (c *Settings) GetNeckEnable() bool {
	return c.NeckEnable != nil && *c.NeckEnable
}

// GetNeckZ returns neck_z or 0.
func (c *Settings) GetNeckZ() float64 {
	if c.NeckZ == nil {
		return 0
	}
	return *c.NeckZ
}

// GetFilterAlphas returns the smoothing factors, 1 (no smoothing) by
// default.
func (c *Settings) GetFilterAlphas() (translation, rotation float64) {
	translation, rotation = 1, 1
	if c.FilterTranslationAlpha != nil {
		translation = *c.FilterTranslationAlpha
	}
	if c.FilterRotationAlpha != nil {
		rotation = *c.FilterRotationAlpha
	}
	return translation, rotation
}

// FilterEnabled reports whether any smoothing is configured.
func (c *Settings) FilterEnabled() bool {
	t, r := c.GetFilterAlphas()
	return t < 1 || r < 1
}

// PipelineSettings converts to the pipeline's session options.
func (c *Settings) PipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		CenterAtStartup: c.GetCenterAtStartup(),
		RelTransMode:    c.GetRelTransMode(),
		RelTransDisable: c.GetRelTransDisable(),
		NeckEnable:      c.GetNeckEnable(),
		NeckZ:           c.GetNeckZ(),
	}
}

// MappingTable builds the axis mapping. An axis with neither gain nor
// limit set uses the identity curve.
func (c *Settings) MappingTable() *mapping.Table {
	t := mapping.DefaultTable()
	for i, a := range c.Axes {
		ax := &t[i]
		if a.Source != nil {
			ax.Source = *a.Source
		}
		ax.Invert = a.Invert != nil && *a.Invert
		if a.Zero != nil {
			ax.Zero = *a.Zero
		}
		ax.AltEnabled = a.AltEnabled != nil && *a.AltEnabled
		ax.Main = curve(a.Gain, a.Limit)
		ax.Alt = curve(a.AltGain, a.AltLimit)
	}
	return t
}

func curve(gain, limit *float64) mapping.Curve {
	if gain == nil && limit == nil {
		return mapping.Identity{}
	}
	l := mapping.Linear{Gain: 1}
	if gain != nil {
		l.Gain = *gain
	}
	if limit != nil {
		l.Limit = *limit
	}
	return l
}
