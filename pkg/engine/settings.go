package engine

import (
	"math"
	"strconv"
)

// SettingType enumerates the value shapes a setting definition can take.
type SettingType string

const (
	SettingBoolean        SettingType = "boolean"
	SettingNumber         SettingType = "number"
	SettingNullableNumber SettingType = "nullableNumber"
	SettingSelect         SettingType = "select"
)

// Dependency gates a setting on another setting's resolved value.
type Dependency struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// SettingDef describes one configurable setting of a game module.
type SettingDef struct {
	Key      string      `json:"key"`
	Type     SettingType `json:"type"`
	Default  interface{} `json:"default"`
	Min      *float64    `json:"min,omitempty"`
	Max      *float64    `json:"max,omitempty"`
	Step     *float64    `json:"step,omitempty"`
	Options  []string    `json:"options,omitempty"`
	Label    string      `json:"label,omitempty"`
	DependsOn *Dependency `json:"dependsOn,omitempty"`
}

// F is a convenience for building *float64 bounds in definitions.
func F(v float64) *float64 { return &v }

// Validate resolves a partial, untrusted settings map against defs. The walk
// is definition-driven: unknown input keys are dropped, dependency-gated
// settings fall back to their default when the dependency is unmet, booleans
// coerce from common encodings, numbers are clamped to [min,max] and snapped
// to the nearest step offset from min, and selects must match an option.
// Nullable numbers accept an explicit null.
func Validate(defs []SettingDef, partial map[string]interface{}) Settings {
	resolved := make(Settings, len(defs))

	for _, def := range defs {
		if def.DependsOn != nil && !looseEqual(resolved[def.DependsOn.Key], def.DependsOn.Value) {
			resolved[def.Key] = def.Default
			continue
		}

		raw, present := partial[def.Key]

		if raw == nil {
			if present && def.Type == SettingNullableNumber {
				resolved[def.Key] = nil
			} else {
				resolved[def.Key] = def.Default
			}
			continue
		}

		switch def.Type {
		case SettingBoolean:
			if b, ok := coerceBool(raw); ok {
				resolved[def.Key] = b
			} else {
				resolved[def.Key] = def.Default
			}

		case SettingNumber, SettingNullableNumber:
			n, ok := coerceNumber(raw)
			if !ok {
				resolved[def.Key] = def.Default
				continue
			}
			resolved[def.Key] = snap(clamp(n, def.Min, def.Max), def.Min, def.Step)

		case SettingSelect:
			s, ok := raw.(string)
			if ok && containsOption(def.Options, s) {
				resolved[def.Key] = s
			} else {
				resolved[def.Key] = def.Default
			}

		default:
			resolved[def.Key] = def.Default
		}
	}

	return resolved
}

// DefaultsFrom builds the default settings map of a definition list.
func DefaultsFrom(defs []SettingDef) Settings {
	return Validate(defs, nil)
}

func coerceBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		if v == "true" {
			return true, true
		}
		if v == "false" {
			return false, true
		}
	case float64:
		if v == 0 {
			return false, true
		}
		if v == 1 {
			return true, true
		}
	case int:
		if v == 0 {
			return false, true
		}
		if v == 1 {
			return true, true
		}
	}
	return false, false
}

func coerceNumber(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func clamp(v float64, min, max *float64) float64 {
	if min != nil && v < *min {
		v = *min
	}
	if max != nil && v > *max {
		v = *max
	}
	return v
}

// snap rounds v to the nearest multiple of step offset from min.
func snap(v float64, min, step *float64) float64 {
	if step == nil || *step <= 0 {
		return v
	}
	base := 0.0
	if min != nil {
		base = *min
	}
	return base + math.Round((v-base)/(*step))*(*step)
}

func containsOption(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

// looseEqual compares a resolved setting value against a dependency target,
// tolerating int/float64 mismatches.
func looseEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	if af, ok := coerceNumber(a); ok {
		if bf, ok2 := coerceNumber(b); ok2 {
			return af == bf
		}
	}
	return a == b
}

// Bool reads a boolean setting, falling back when absent or mistyped.
func (s Settings) Bool(key string, fallback bool) bool {
	if v, ok := s[key].(bool); ok {
		return v
	}
	return fallback
}

// Int reads a numeric setting as int, falling back when absent or null.
func (s Settings) Int(key string, fallback int) int {
	if n, ok := coerceNumber(s[key]); ok {
		return int(n)
	}
	return fallback
}

// NullableInt reads a nullable numeric setting. ok is false when the value is
// null or absent.
func (s Settings) NullableInt(key string) (int, bool) {
	if s[key] == nil {
		return 0, false
	}
	if n, ok := coerceNumber(s[key]); ok {
		return int(n), true
	}
	return 0, false
}

// String reads a select setting, falling back when absent.
func (s Settings) String(key, fallback string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return fallback
}
