package models

import (
	"encoding/json"
	"testing"
)

func TestMergeEmptyPartialKeepsDefaults(t *testing.T) {
	defaults := DefaultSettings()
	merged := Merge(map[string]any{})

	if merged.Preferences.Language != defaults.Preferences.Language {
		t.Errorf("Expected default language %q, got %q", defaults.Preferences.Language, merged.Preferences.Language)
	}
	if merged.Preferences.Theme != ThemeModeSystem {
		t.Errorf("Expected default theme system, got %q", merged.Preferences.Theme)
	}
	if merged.Preferences.DefaultPageSize != 25 {
		t.Errorf("Expected default page size 25, got %d", merged.Preferences.DefaultPageSize)
	}
	if merged.UserID != AnonymousUserID {
		t.Errorf("Expected anonymous user id, got %q", merged.UserID)
	}
}

func TestMergeNilPartial(t *testing.T) {
	merged := Merge(nil)
	if merged == nil {
		t.Fatal("Expected defaults for nil partial")
	}
	if merged.Preferences.Theme != ThemeModeSystem {
		t.Errorf("Expected default theme, got %q", merged.Preferences.Theme)
	}
}

func TestMergeValidFields(t *testing.T) {
	merged := Merge(map[string]any{
		"preferences": map[string]any{
			"language":        "fr",
			"theme":           "dark",
			"fontSize":        "large",
			"density":         "compact",
			"colorPreset":     "ocean",
			"animations":      false,
			"defaultPageSize": 50,
			"refreshInterval": 60,
			"sessionTimeout":  120,
		},
		"performance": map[string]any{
			"chunkSize":    200,
			"cacheEnabled": false,
		},
		"accessibility": map[string]any{
			"reducedMotion": true,
		},
	})

	if merged.Preferences.Language != "fr" {
		t.Errorf("Expected language fr, got %q", merged.Preferences.Language)
	}
	if merged.Preferences.Theme != ThemeModeDark {
		t.Errorf("Expected theme dark, got %q", merged.Preferences.Theme)
	}
	if merged.Preferences.DefaultPageSize != 50 {
		t.Errorf("Expected page size 50, got %d", merged.Preferences.DefaultPageSize)
	}
	if merged.Preferences.RefreshInterval != 60 {
		t.Errorf("Expected refresh interval 60, got %d", merged.Preferences.RefreshInterval)
	}
	if merged.Performance.ChunkSize != 200 {
		t.Errorf("Expected chunk size 200, got %d", merged.Performance.ChunkSize)
	}
	if merged.Performance.CacheEnabled {
		t.Error("Expected cacheEnabled false")
	}
	if !merged.Accessibility.ReducedMotion {
		t.Error("Expected reducedMotion true")
	}
	// fontSize=large implies largeText
	if !merged.Accessibility.LargeText {
		t.Error("Expected largeText true when fontSize is large")
	}
}

func TestMergeInvalidValuesFallBackToDefaults(t *testing.T) {
	testCases := []struct {
		name    string
		partial map[string]any
		check   func(t *testing.T, s *Settings)
	}{
		{
			name: "invalid theme enum",
			partial: map[string]any{
				"preferences": map[string]any{"theme": "purple"},
			},
			check: func(t *testing.T, s *Settings) {
				if s.Preferences.Theme != ThemeModeSystem {
					t.Errorf("Expected default theme, got %q", s.Preferences.Theme)
				}
			},
		},
		{
			name: "unsupported language",
			partial: map[string]any{
				"preferences": map[string]any{"language": "xx"},
			},
			check: func(t *testing.T, s *Settings) {
				if s.Preferences.Language != "en" {
					t.Errorf("Expected default language en, got %q", s.Preferences.Language)
				}
			},
		},
		{
			name: "wrong type for bool",
			partial: map[string]any{
				"preferences": map[string]any{"animations": "yes"},
			},
			check: func(t *testing.T, s *Settings) {
				if !s.Preferences.Animations {
					t.Error("Expected default animations true")
				}
			},
		},
		{
			name: "page size not in allowed set",
			partial: map[string]any{
				"preferences": map[string]any{"defaultPageSize": 37},
			},
			check: func(t *testing.T, s *Settings) {
				if s.Preferences.DefaultPageSize != 25 {
					t.Errorf("Expected default page size 25, got %d", s.Preferences.DefaultPageSize)
				}
			},
		},
		{
			name: "refresh interval out of range",
			partial: map[string]any{
				"preferences": map[string]any{"refreshInterval": 5},
			},
			check: func(t *testing.T, s *Settings) {
				if s.Preferences.RefreshInterval != 30 {
					t.Errorf("Expected default refresh interval 30, got %d", s.Preferences.RefreshInterval)
				}
			},
		},
		{
			name: "session timeout above range",
			partial: map[string]any{
				"preferences": map[string]any{"sessionTimeout": 10000},
			},
			check: func(t *testing.T, s *Settings) {
				if s.Preferences.SessionTimeout != 30 {
					t.Errorf("Expected default session timeout 30, got %d", s.Preferences.SessionTimeout)
				}
			},
		},
		{
			name: "fractional int rejected",
			partial: map[string]any{
				"performance": map[string]any{"chunkSize": 10.5},
			},
			check: func(t *testing.T, s *Settings) {
				if s.Performance.ChunkSize != 100 {
					t.Errorf("Expected default chunk size 100, got %d", s.Performance.ChunkSize)
				}
			},
		},
		{
			name: "negative chunk size rejected",
			partial: map[string]any{
				"performance": map[string]any{"chunkSize": -1},
			},
			check: func(t *testing.T, s *Settings) {
				if s.Performance.ChunkSize != 100 {
					t.Errorf("Expected default chunk size 100, got %d", s.Performance.ChunkSize)
				}
			},
		},
		{
			name: "section with wrong shape ignored",
			partial: map[string]any{
				"preferences": "not an object",
			},
			check: func(t *testing.T, s *Settings) {
				if s.Preferences.Language != "en" {
					t.Errorf("Expected defaults when section is not an object, got %q", s.Preferences.Language)
				}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, Merge(tc.partial))
		})
	}
}

func TestMergeOneBadFieldDoesNotPoisonOthers(t *testing.T) {
	merged := Merge(map[string]any{
		"preferences": map[string]any{
			"theme":    "neon", // invalid
			"language": "de",   // valid
			"fontSize": "small",
		},
	})

	if merged.Preferences.Theme != ThemeModeSystem {
		t.Errorf("Expected default theme, got %q", merged.Preferences.Theme)
	}
	if merged.Preferences.Language != "de" {
		t.Errorf("Expected language de, got %q", merged.Preferences.Language)
	}
	if merged.Preferences.FontSize != FontSizeSmall {
		t.Errorf("Expected fontSize small, got %q", merged.Preferences.FontSize)
	}
}

func TestLargeTextSync(t *testing.T) {
	testCases := []struct {
		name          string
		partial       map[string]any
		wantFontSize  FontSize
		wantLargeText bool
	}{
		{
			name: "fontSize large sets largeText",
			partial: map[string]any{
				"preferences": map[string]any{"fontSize": "large"},
			},
			wantFontSize:  FontSizeLarge,
			wantLargeText: true,
		},
		{
			name: "largeText true promotes fontSize",
			partial: map[string]any{
				"accessibility": map[string]any{"largeText": true},
			},
			wantFontSize:  FontSizeLarge,
			wantLargeText: true,
		},
		{
			name: "largeText false keeps medium fontSize",
			partial: map[string]any{
				"accessibility": map[string]any{"largeText": false},
			},
			wantFontSize:  FontSizeMedium,
			wantLargeText: false,
		},
		{
			name: "conflict resolves in favor of fontSize",
			partial: map[string]any{
				"preferences":   map[string]any{"fontSize": "small"},
				"accessibility": map[string]any{"largeText": true},
			},
			wantFontSize:  FontSizeSmall,
			wantLargeText: false,
		},
		{
			name: "conflict the other way also favors fontSize",
			partial: map[string]any{
				"preferences":   map[string]any{"fontSize": "large"},
				"accessibility": map[string]any{"largeText": false},
			},
			wantFontSize:  FontSizeLarge,
			wantLargeText: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			merged := Merge(tc.partial)
			if merged.Preferences.FontSize != tc.wantFontSize {
				t.Errorf("Expected fontSize %q, got %q", tc.wantFontSize, merged.Preferences.FontSize)
			}
			if merged.Accessibility.LargeText != tc.wantLargeText {
				t.Errorf("Expected largeText %v, got %v", tc.wantLargeText, merged.Accessibility.LargeText)
			}
		})
	}
}

func TestMergeLastModified(t *testing.T) {
	merged := Merge(map[string]any{"lastModified": float64(12345)})
	if merged.LastModified != 12345 {
		t.Errorf("Expected lastModified 12345, got %d", merged.LastModified)
	}

	merged = Merge(map[string]any{"lastModified": float64(-5)})
	if merged.LastModified <= 0 {
		t.Errorf("Expected negative lastModified to be replaced by clock, got %d", merged.LastModified)
	}

	merged = Merge(map[string]any{"lastModified": "yesterday"})
	if merged.LastModified <= 0 {
		t.Errorf("Expected non-numeric lastModified to be replaced by clock, got %d", merged.LastModified)
	}
}

func TestMergeJSONParseFailure(t *testing.T) {
	if _, err := MergeJSON([]byte("{not json")); err == nil {
		t.Fatal("Expected parse error for malformed JSON")
	}

	merged, err := MergeJSON([]byte(`{"preferences":{"theme":"light"}}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if merged.Preferences.Theme != ThemeModeLight {
		t.Errorf("Expected theme light, got %q", merged.Preferences.Theme)
	}
}

func TestUnknownKeysSurviveRoundTrip(t *testing.T) {
	merged := Merge(map[string]any{
		"preferences": map[string]any{
			"theme":            "dark",
			"experimentalFlag": true,
		},
		"performance": map[string]any{
			"futureKnob": 42.0,
		},
	})

	if merged.Preferences.Custom["experimentalFlag"] != true {
		t.Error("Expected unknown preference key in Custom")
	}

	raw, err := json.Marshal(merged)
	if err != nil {
		t.Fatalf("Unexpected marshal error: %v", err)
	}

	var decoded Settings
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unexpected unmarshal error: %v", err)
	}

	if decoded.Preferences.Custom["experimentalFlag"] != true {
		t.Error("Expected unknown preference key to survive marshal round trip")
	}
	if v, ok := decoded.Performance.Custom["futureKnob"].(float64); !ok || v != 42.0 {
		t.Errorf("Expected futureKnob 42 in performance Custom, got %v", decoded.Performance.Custom["futureKnob"])
	}
	if decoded.Preferences.Theme != ThemeModeDark {
		t.Errorf("Expected theme dark after round trip, got %q", decoded.Preferences.Theme)
	}
}

func TestDirectionFor(t *testing.T) {
	testCases := []struct {
		language string
		want     Direction
	}{
		{"en", DirectionLTR},
		{"fr", DirectionLTR},
		{"ar", DirectionRTL},
		{"he", DirectionRTL},
		{"fa", DirectionRTL},
		{"", DirectionLTR},
	}
	for _, tc := range testCases {
		if got := DirectionFor(tc.language); got != tc.want {
			t.Errorf("DirectionFor(%q) = %q, want %q", tc.language, got, tc.want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := DefaultSettings()
	original.Preferences.Custom = map[string]any{"k": "v"}

	copied := original.Clone()
	copied.Preferences.Language = "fr"
	copied.Preferences.Custom["k"] = "changed"

	if original.Preferences.Language != "en" {
		t.Error("Clone mutation leaked into original language")
	}
	if original.Preferences.Custom["k"] != "v" {
		t.Error("Clone mutation leaked into original custom map")
	}
}

func TestThemeProjectionOf(t *testing.T) {
	s := DefaultSettings()
	s.Preferences.Theme = ThemeModeDark
	s.Preferences.HighContrast = true

	p := ThemeProjectionOf(s)
	if p.Theme != ThemeModeDark {
		t.Errorf("Expected projected theme dark, got %q", p.Theme)
	}
	if !p.HighContrast {
		t.Error("Expected projected highContrast true")
	}
	if p.FontSize != FontSizeMedium {
		t.Errorf("Expected projected fontSize medium, got %q", p.FontSize)
	}
}
