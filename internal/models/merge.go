package models

import (
	"encoding/json"
	"log"
	"time"
)

// MergeJSON parses raw JSON and merges it over the defaults. The only
// error it can return is a parse failure; everything past parsing is
// defensive and falls back to default values field by field.
func MergeJSON(raw []byte) (*Settings, error) {
	var partial map[string]any
	if err := json.Unmarshal(raw, &partial); err != nil {
		return nil, err
	}
	return Merge(partial), nil
}

// Merge deep-merges a partial snapshot over the defaults. For each
// section present in the partial, known fields are shallow-merged over
// the defaults; fields that fail type, enum or range validation are
// replaced by the default value and a warning is logged; unknown keys
// at the section level are preserved. Merge never fails.
func Merge(partial map[string]any) *Settings {
	out := DefaultSettings()
	if partial == nil {
		return out
	}

	fontSizeSet := false
	largeTextSet := false

	if section, ok := partial["preferences"].(map[string]any); ok {
		p := &out.Preferences
		mergeEnum(section, "language", (*string)(&p.Language), func(v string) bool { return ValidLanguage(v) })
		mergeEnum(section, "theme", (*string)(&p.Theme), func(v string) bool { return ThemeMode(v).Valid() })
		fontSizeSet = mergeEnum(section, "fontSize", (*string)(&p.FontSize), func(v string) bool { return FontSize(v).Valid() })
		mergeEnum(section, "density", (*string)(&p.Density), func(v string) bool { return Density(v).Valid() })
		mergeEnum(section, "colorPreset", (*string)(&p.ColorPreset), func(v string) bool { return ColorPreset(v).Valid() })
		mergeBool(section, "animations", &p.Animations)
		mergeBool(section, "highContrast", &p.HighContrast)
		mergeInt(section, "defaultPageSize", &p.DefaultPageSize, ValidPageSize)
		mergeBool(section, "showStatsCards", &p.ShowStatsCards)
		mergeBool(section, "autoRefresh", &p.AutoRefresh)
		mergeInt(section, "refreshInterval", &p.RefreshInterval, inRange(10, 300))
		mergeBool(section, "emailNotifications", &p.EmailNotifications)
		mergeBool(section, "pushNotifications", &p.PushNotifications)
		mergeBool(section, "soundEnabled", &p.SoundEnabled)
		mergeInt(section, "sessionTimeout", &p.SessionTimeout, inRange(5, 480))
		mergeBool(section, "twoFactorEnabled", &p.TwoFactorEnabled)
		mergeBool(section, "auditLogging", &p.AuditLogging)
		p.Custom = unknownKeys(section, preferenceKeys)
	}

	if section, ok := partial["performance"].(map[string]any); ok {
		p := &out.Performance
		mergeBool(section, "enableVirtualization", &p.EnableVirtualization)
		mergeBool(section, "cacheEnabled", &p.CacheEnabled)
		mergeBool(section, "lazyLoading", &p.LazyLoading)
		mergeBool(section, "compressionEnabled", &p.CompressionEnabled)
		mergeInt(section, "chunkSize", &p.ChunkSize, positive)
		mergeInt(section, "cacheSize", &p.CacheSize, positive)
		p.Custom = unknownKeys(section, performanceKeys)
	}

	if section, ok := partial["accessibility"].(map[string]any); ok {
		a := &out.Accessibility
		mergeBool(section, "screenReader", &a.ScreenReader)
		mergeBool(section, "keyboardNavigation", &a.KeyboardNavigation)
		mergeBool(section, "reducedMotion", &a.ReducedMotion)
		largeTextSet = mergeBool(section, "largeText", &a.LargeText)
		a.Custom = unknownKeys(section, accessibilityKeys)
	}

	syncLargeText(out, fontSizeSet, largeTextSet)

	if lm, ok := numericValue(partial["lastModified"]); ok && lm >= 0 {
		out.LastModified = int64(lm)
	} else {
		out.LastModified = time.Now().UnixMilli()
	}

	if uid, ok := partial["userId"].(string); ok && uid != "" {
		out.UserID = uid
	}

	return out
}

// syncLargeText keeps accessibility.largeText equivalent to
// preferences.fontSize == "large". The explicitly provided field wins;
// fontSize breaks a tie when both were provided.
func syncLargeText(s *Settings, fontSizeSet, largeTextSet bool) {
	switch {
	case fontSizeSet:
		s.Accessibility.LargeText = s.Preferences.FontSize == FontSizeLarge
	case largeTextSet:
		if s.Accessibility.LargeText {
			s.Preferences.FontSize = FontSizeLarge
		} else if s.Preferences.FontSize == FontSizeLarge {
			s.Preferences.FontSize = FontSizeMedium
		}
	default:
		s.Accessibility.LargeText = s.Preferences.FontSize == FontSizeLarge
	}
}

// mergeEnum assigns section[key] to dst when it is a string accepted by
// valid. Returns true when the key was present, whether or not it was
// usable.
func mergeEnum(section map[string]any, key string, dst *string, valid func(string) bool) bool {
	raw, present := section[key]
	if !present {
		return false
	}
	v, ok := raw.(string)
	if !ok || !valid(v) {
		log.Printf("Warning: discarding invalid value for %q: %v", key, raw)
		return true
	}
	*dst = v
	return true
}

func mergeBool(section map[string]any, key string, dst *bool) bool {
	raw, present := section[key]
	if !present {
		return false
	}
	v, ok := raw.(bool)
	if !ok {
		log.Printf("Warning: discarding invalid value for %q: %v", key, raw)
		return true
	}
	*dst = v
	return true
}

func mergeInt(section map[string]any, key string, dst *int, valid func(int) bool) bool {
	raw, present := section[key]
	if !present {
		return false
	}
	f, ok := numericValue(raw)
	if !ok || f != float64(int(f)) || !valid(int(f)) {
		log.Printf("Warning: discarding invalid value for %q: %v", key, raw)
		return true
	}
	*dst = int(f)
	return true
}

// numericValue accepts the numeric types JSON decoding and a typed
// snapshot can produce.
func numericValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

func unknownKeys(section map[string]any, known map[string]bool) map[string]any {
	var custom map[string]any
	for k, v := range section {
		if known[k] {
			continue
		}
		if custom == nil {
			custom = make(map[string]any)
		}
		custom[k] = v
	}
	return custom
}

func inRange(min, max int) func(int) bool {
	return func(v int) bool { return v >= min && v <= max }
}

func positive(v int) bool { return v > 0 }

// AsMap converts a snapshot to the generic tree Merge consumes.
func (s *Settings) AsMap() map[string]any {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
