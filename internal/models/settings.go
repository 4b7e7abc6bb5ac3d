package models

import (
	"encoding/json"
	"runtime"
	"time"
)

// AnonymousUserID marks a snapshot that is not bound to a signed-in user.
const AnonymousUserID = "anonymous"

// Settings is the full settings snapshot: three sections plus metadata.
// LastModified is milliseconds since epoch and advances on every
// successful write, local or remote.
type Settings struct {
	Preferences   Preferences   `json:"preferences" bson:"preferences"`
	Performance   Performance   `json:"performance" bson:"performance"`
	Accessibility Accessibility `json:"accessibility" bson:"accessibility"`
	LastModified  int64         `json:"lastModified" bson:"lastModified"`
	UserID        string        `json:"userId" bson:"userId"`
}

// Preferences holds the user-facing settings.
type Preferences struct {
	Language     string      `json:"language" bson:"language"`
	Theme        ThemeMode   `json:"theme" bson:"theme"`
	FontSize     FontSize    `json:"fontSize" bson:"fontSize"`
	Density      Density     `json:"density" bson:"density"`
	Animations   bool        `json:"animations" bson:"animations"`
	HighContrast bool        `json:"highContrast" bson:"highContrast"`
	ColorPreset  ColorPreset `json:"colorPreset" bson:"colorPreset"`

	// Grid defaults
	DefaultPageSize int  `json:"defaultPageSize" bson:"defaultPageSize"`
	ShowStatsCards  bool `json:"showStatsCards" bson:"showStatsCards"`
	AutoRefresh     bool `json:"autoRefresh" bson:"autoRefresh"`
	RefreshInterval int  `json:"refreshInterval" bson:"refreshInterval"` // seconds, 10..300

	// Notifications
	EmailNotifications bool `json:"emailNotifications" bson:"emailNotifications"`
	PushNotifications  bool `json:"pushNotifications" bson:"pushNotifications"`
	SoundEnabled       bool `json:"soundEnabled" bson:"soundEnabled"`

	// Security
	SessionTimeout   int  `json:"sessionTimeout" bson:"sessionTimeout"` // minutes, 5..480
	TwoFactorEnabled bool `json:"twoFactorEnabled" bson:"twoFactorEnabled"`
	AuditLogging     bool `json:"auditLogging" bson:"auditLogging"`

	// Custom keeps unknown section keys so snapshots written by newer
	// clients survive a round trip through this service.
	Custom map[string]any `json:"-" bson:"custom,omitempty"`
}

// Performance holds tuning flags for the grid and data layers.
type Performance struct {
	EnableVirtualization bool `json:"enableVirtualization" bson:"enableVirtualization"`
	CacheEnabled         bool `json:"cacheEnabled" bson:"cacheEnabled"`
	LazyLoading          bool `json:"lazyLoading" bson:"lazyLoading"`
	CompressionEnabled   bool `json:"compressionEnabled" bson:"compressionEnabled"`
	ChunkSize            int  `json:"chunkSize" bson:"chunkSize"`
	CacheSize            int  `json:"cacheSize" bson:"cacheSize"`

	Custom map[string]any `json:"-" bson:"custom,omitempty"`
}

// Accessibility holds assistive settings. LargeText is kept equivalent
// to Preferences.FontSize == "large".
type Accessibility struct {
	ScreenReader       bool `json:"screenReader" bson:"screenReader"`
	KeyboardNavigation bool `json:"keyboardNavigation" bson:"keyboardNavigation"`
	ReducedMotion      bool `json:"reducedMotion" bson:"reducedMotion"`
	LargeText          bool `json:"largeText" bson:"largeText"`

	Custom map[string]any `json:"-" bson:"custom,omitempty"`
}

// DeviceInfo is the coarse device descriptor attached to remote writes.
type DeviceInfo struct {
	UserAgent string `json:"userAgent" bson:"userAgent"`
	Platform  string `json:"platform" bson:"platform"`
	Timestamp int64  `json:"timestamp" bson:"timestamp"`
}

// CurrentDeviceInfo describes this host. The descriptor is coarse on
// purpose; it exists only to make remote writes attributable.
func CurrentDeviceInfo() DeviceInfo {
	return DeviceInfo{
		UserAgent: "techno-etl-service/1.0 (" + runtime.GOOS + "; " + runtime.GOARCH + ")",
		Platform:  runtime.GOOS,
		Timestamp: time.Now().UnixMilli(),
	}
}

// RemoteSettings is the per-user document stored at users/<uid>/settings.
type RemoteSettings struct {
	Settings   `bson:",inline"`
	SyncedAt   int64      `json:"syncedAt" bson:"syncedAt"`
	DeviceInfo DeviceInfo `json:"deviceInfo" bson:"deviceInfo"`
}

// DefaultSettings returns a fresh copy of the canonical defaults.
// Callers may mutate the result freely.
func DefaultSettings() *Settings {
	return &Settings{
		Preferences: Preferences{
			Language:           "en",
			Theme:              ThemeModeSystem,
			FontSize:           FontSizeMedium,
			Density:            DensityStandard,
			Animations:         true,
			HighContrast:       false,
			ColorPreset:        ColorPresetTechno,
			DefaultPageSize:    25,
			ShowStatsCards:     true,
			AutoRefresh:        false,
			RefreshInterval:    30,
			EmailNotifications: true,
			PushNotifications:  false,
			SoundEnabled:       true,
			SessionTimeout:     30,
			TwoFactorEnabled:   false,
			AuditLogging:       true,
		},
		Performance: Performance{
			EnableVirtualization: true,
			CacheEnabled:         true,
			LazyLoading:          true,
			CompressionEnabled:   false,
			ChunkSize:            100,
			CacheSize:            50,
		},
		Accessibility: Accessibility{
			ScreenReader:       false,
			KeyboardNavigation: true,
			ReducedMotion:      false,
			LargeText:          false,
		},
		LastModified: time.Now().UnixMilli(),
		UserID:       AnonymousUserID,
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Settings) Clone() *Settings {
	out := *s
	out.Preferences.Custom = cloneCustom(s.Preferences.Custom)
	out.Performance.Custom = cloneCustom(s.Performance.Custom)
	out.Accessibility.Custom = cloneCustom(s.Accessibility.Custom)
	return &out
}

func cloneCustom(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ThemeProjection is the flat early-boot projection persisted under the
// techno-etl-theme-settings key so a boot-time theme stub can paint the
// shell before the full snapshot loads.
type ThemeProjection struct {
	Theme        ThemeMode   `json:"theme"`
	FontSize     FontSize    `json:"fontSize"`
	Density      Density     `json:"density"`
	ColorPreset  ColorPreset `json:"colorPreset"`
	HighContrast bool        `json:"highContrast"`
	Animations   bool        `json:"animations"`
}

// ThemeProjectionOf extracts the boot projection from a snapshot.
func ThemeProjectionOf(s *Settings) ThemeProjection {
	return ThemeProjection{
		Theme:        s.Preferences.Theme,
		FontSize:     s.Preferences.FontSize,
		Density:      s.Preferences.Density,
		ColorPreset:  s.Preferences.ColorPreset,
		HighContrast: s.Preferences.HighContrast,
		Animations:   s.Preferences.Animations,
	}
}

// Section-level known keys. Anything else found in an incoming section
// object lands in the section's Custom map and is hoisted back out on
// marshal, so unknown keys survive the round trip at section level.

var preferenceKeys = keySet(
	"language", "theme", "fontSize", "density", "animations", "highContrast",
	"colorPreset", "defaultPageSize", "showStatsCards", "autoRefresh",
	"refreshInterval", "emailNotifications", "pushNotifications",
	"soundEnabled", "sessionTimeout", "twoFactorEnabled", "auditLogging",
)

var performanceKeys = keySet(
	"enableVirtualization", "cacheEnabled", "lazyLoading",
	"compressionEnabled", "chunkSize", "cacheSize",
)

var accessibilityKeys = keySet(
	"screenReader", "keyboardNavigation", "reducedMotion", "largeText",
)

func keySet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func marshalWithCustom(known any, custom map[string]any) ([]byte, error) {
	base, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(custom) == 0 {
		return base, nil
	}
	var flat map[string]any
	if err := json.Unmarshal(base, &flat); err != nil {
		return nil, err
	}
	for k, v := range custom {
		if _, exists := flat[k]; !exists {
			flat[k] = v
		}
	}
	return json.Marshal(flat)
}

func splitCustom(data []byte, known map[string]bool) (map[string]any, error) {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	var custom map[string]any
	for k, v := range flat {
		if known[k] {
			continue
		}
		if custom == nil {
			custom = make(map[string]any)
		}
		custom[k] = v
	}
	return custom, nil
}

type preferencesAlias Preferences
type performanceAlias Performance
type accessibilityAlias Accessibility

func (p Preferences) MarshalJSON() ([]byte, error) {
	return marshalWithCustom(preferencesAlias(p), p.Custom)
}

func (p *Preferences) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*preferencesAlias)(p)); err != nil {
		return err
	}
	custom, err := splitCustom(data, preferenceKeys)
	if err != nil {
		return err
	}
	p.Custom = custom
	return nil
}

func (p Performance) MarshalJSON() ([]byte, error) {
	return marshalWithCustom(performanceAlias(p), p.Custom)
}

func (p *Performance) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*performanceAlias)(p)); err != nil {
		return err
	}
	custom, err := splitCustom(data, performanceKeys)
	if err != nil {
		return err
	}
	p.Custom = custom
	return nil
}

func (a Accessibility) MarshalJSON() ([]byte, error) {
	return marshalWithCustom(accessibilityAlias(a), a.Custom)
}

func (a *Accessibility) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*accessibilityAlias)(a)); err != nil {
		return err
	}
	custom, err := splitCustom(data, accessibilityKeys)
	if err != nil {
		return err
	}
	a.Custom = custom
	return nil
}
