package service

import (
	"log"
	"sync"

	"techno-etl-service/internal/event"
	"techno-etl-service/internal/models"
)

// DocumentState is the ambient UI state a snapshot projects onto: the
// server-held equivalent of the document attributes and root CSS
// variables the dashboard shell reads at boot.
type DocumentState struct {
	Direction    models.Direction   `json:"direction"`
	Language     string             `json:"language"`
	Theme        models.ThemeMode   `json:"dataTheme"` // effective: light or dark, never system
	FontSize     models.FontSize    `json:"dataFontSize"`
	Density      models.Density     `json:"dataDensity"`
	ColorPreset  models.ColorPreset `json:"dataColorPreset"`
	HighContrast bool               `json:"highContrast"`

	// AnimationDuration is "0s" while animations are disabled and empty
	// when the variable is unset.
	AnimationDuration string `json:"animationDuration,omitempty"`
}

// HostThemeSource models the host's dark-mode preference as a
// subscription, not a one-shot read: the preference can flip while the
// app is running. Clients report flips through the ambient endpoint.
type HostThemeSource struct {
	mu       sync.Mutex
	dark     bool
	nextID   int
	watchers map[int]func(dark bool)
}

func NewHostThemeSource() *HostThemeSource {
	return &HostThemeSource{watchers: make(map[int]func(bool))}
}

func (h *HostThemeSource) PrefersDark() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dark
}

// SetDark records the host preference and notifies watchers on a flip.
func (h *HostThemeSource) SetDark(dark bool) {
	h.mu.Lock()
	if h.dark == dark {
		h.mu.Unlock()
		return
	}
	h.dark = dark
	watchers := make([]func(bool), 0, len(h.watchers))
	for _, w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.mu.Unlock()

	for _, w := range watchers {
		w(dark)
	}
}

// Watch registers a listener fired on every preference flip and
// returns an idempotent cancel.
func (h *HostThemeSource) Watch(callback func(dark bool)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.watchers[id] = callback
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
		})
	}
}

// EffectsService applies a settings snapshot to the ambient document
// state and emits change events in a fixed order: themeChanged, then
// languageChanged, then settingsChanged.
type EffectsService struct {
	mu    sync.Mutex
	bus   *event.Bus
	host  *HostThemeSource
	state DocumentState
	last  *models.Settings
}

func NewEffectsService(bus *event.Bus, host *HostThemeSource) *EffectsService {
	s := &EffectsService{
		bus:  bus,
		host: host,
	}

	// A snapshot on theme "system" must track host flips without user
	// action.
	host.Watch(func(bool) {
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		if last != nil && last.Preferences.Theme == models.ThemeModeSystem {
			s.Apply(last)
		}
	})

	return s
}

// Apply projects the snapshot onto the document state and notifies
// observers. It never fails; a sub-step that cannot complete is logged
// and the remaining steps still run.
func (s *EffectsService) Apply(snap *models.Settings) {
	direction := models.DirectionFor(snap.Preferences.Language)
	effective := s.effectiveTheme(snap.Preferences.Theme)

	animationDuration := ""
	if !snap.Preferences.Animations {
		animationDuration = "0s"
	}

	s.mu.Lock()
	s.state = DocumentState{
		Direction:         direction,
		Language:          snap.Preferences.Language,
		Theme:             effective,
		FontSize:          snap.Preferences.FontSize,
		Density:           snap.Preferences.Density,
		ColorPreset:       snap.Preferences.ColorPreset,
		HighContrast:      snap.Preferences.HighContrast,
		AnimationDuration: animationDuration,
	}
	s.last = snap.Clone()
	s.mu.Unlock()

	s.bus.Publish(event.TopicThemeChanged, event.ThemeChanged{
		Theme:        effective,
		FontSize:     snap.Preferences.FontSize,
		Density:      snap.Preferences.Density,
		Animations:   snap.Preferences.Animations,
		HighContrast: snap.Preferences.HighContrast,
		ColorPreset:  snap.Preferences.ColorPreset,
		Snapshot:     snap,
	})
	s.bus.Publish(event.TopicLanguageChanged, event.LanguageChanged{
		Language:  snap.Preferences.Language,
		Direction: direction,
		Snapshot:  snap,
	})
	s.bus.Publish(event.TopicSettingsChanged, snap)

	log.Printf("Applied settings: lang=%s dir=%s theme=%s density=%s",
		snap.Preferences.Language, direction, effective, snap.Preferences.Density)
}

// WatchSystemTheme exposes host preference flips to observers.
func (s *EffectsService) WatchSystemTheme(callback func(dark bool)) func() {
	return s.host.Watch(callback)
}

// State returns the current ambient document state.
func (s *EffectsService) State() DocumentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *EffectsService) effectiveTheme(mode models.ThemeMode) models.ThemeMode {
	if mode != models.ThemeModeSystem {
		return mode
	}
	if s.host.PrefersDark() {
		return models.ThemeModeDark
	}
	return models.ThemeModeLight
}
