package service

import (
	"sync"

	"techno-etl-service/internal/event"
	"techno-etl-service/internal/models"
)

// Effect observers keep a per-concern view of the active snapshot so
// their consumers never read a half-applied world. Each one subscribes
// to settingsChanged and re-derives on every apply.

// ThemeView is what the theme observer exposes.
type ThemeView struct {
	Direction      models.Direction `json:"direction"`
	EffectiveTheme models.ThemeMode `json:"effectiveTheme"`
	HighContrast   bool             `json:"highContrast"`
}

type ThemeObserver struct {
	mu      sync.Mutex
	effects *EffectsService
	view    ThemeView
	cancels []func()
}

func NewThemeObserver(bus *event.Bus, effects *EffectsService) *ThemeObserver {
	o := &ThemeObserver{effects: effects}
	o.refresh()

	unsubscribe := bus.Subscribe(event.TopicSettingsChanged, func(any) {
		o.refresh()
	})
	// The effective theme can change without a settings write while the
	// snapshot is on "system".
	cancelWatch := effects.WatchSystemTheme(func(bool) {
		o.refresh()
	})
	o.cancels = []func(){unsubscribe, cancelWatch}
	return o
}

func (o *ThemeObserver) Current() ThemeView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

func (o *ThemeObserver) refresh() {
	state := o.effects.State()
	o.mu.Lock()
	o.view = ThemeView{
		Direction:      state.Direction,
		EffectiveTheme: state.Theme,
		HighContrast:   state.HighContrast,
	}
	o.mu.Unlock()
}

func (o *ThemeObserver) Close() {
	for _, cancel := range o.cancels {
		cancel()
	}
}

// LocaleView is what the locale observer exposes.
type LocaleView struct {
	Language  string           `json:"language"`
	Direction models.Direction `json:"direction"`
}

type LocaleObserver struct {
	mu          sync.Mutex
	view        LocaleView
	unsubscribe func()
}

func NewLocaleObserver(bus *event.Bus, effects *EffectsService) *LocaleObserver {
	state := effects.State()
	o := &LocaleObserver{
		view: LocaleView{Language: state.Language, Direction: state.Direction},
	}
	o.unsubscribe = bus.Subscribe(event.TopicSettingsChanged, func(payload any) {
		snap, ok := payload.(*models.Settings)
		if !ok {
			return
		}
		o.mu.Lock()
		o.view = LocaleView{
			Language:  snap.Preferences.Language,
			Direction: models.DirectionFor(snap.Preferences.Language),
		}
		o.mu.Unlock()
	})
	return o
}

func (o *LocaleObserver) Current() LocaleView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

func (o *LocaleObserver) Close() {
	o.unsubscribe()
}

// GridView is what the grid observer exposes: the defaults the data
// grids read before any per-grid override.
type GridView struct {
	Density     models.Density `json:"density"`
	PageSize    int            `json:"pageSize"`
	Animations  bool           `json:"animations"`
	AutoRefresh bool           `json:"autoRefresh"`
}

type GridObserver struct {
	mu          sync.Mutex
	view        GridView
	unsubscribe func()
}

func NewGridObserver(bus *event.Bus, initial *models.Settings) *GridObserver {
	o := &GridObserver{view: gridViewOf(initial)}
	o.unsubscribe = bus.Subscribe(event.TopicSettingsChanged, func(payload any) {
		snap, ok := payload.(*models.Settings)
		if !ok {
			return
		}
		o.mu.Lock()
		o.view = gridViewOf(snap)
		o.mu.Unlock()
	})
	return o
}

func gridViewOf(snap *models.Settings) GridView {
	return GridView{
		Density:     snap.Preferences.Density,
		PageSize:    snap.Preferences.DefaultPageSize,
		Animations:  snap.Preferences.Animations,
		AutoRefresh: snap.Preferences.AutoRefresh,
	}
}

func (o *GridObserver) Current() GridView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.view
}

func (o *GridObserver) Close() {
	o.unsubscribe()
}
