package service

import (
	"testing"

	"techno-etl-service/internal/event"
	"techno-etl-service/internal/models"
)

func TestThemeObserverTracksApplies(t *testing.T) {
	bus := event.NewBus()
	host := NewHostThemeSource()
	effects := NewEffectsService(bus, host)
	observer := NewThemeObserver(bus, effects)
	defer observer.Close()

	snap := models.DefaultSettings()
	snap.Preferences.Theme = models.ThemeModeDark
	snap.Preferences.Language = "he"
	snap.Preferences.HighContrast = true
	effects.Apply(snap)

	view := observer.Current()
	if view.EffectiveTheme != models.ThemeModeDark {
		t.Errorf("Expected effective theme dark, got %q", view.EffectiveTheme)
	}
	if view.Direction != models.DirectionRTL {
		t.Errorf("Expected rtl for Hebrew, got %q", view.Direction)
	}
	if !view.HighContrast {
		t.Error("Expected high contrast")
	}
}

func TestThemeObserverTracksHostFlips(t *testing.T) {
	bus := event.NewBus()
	host := NewHostThemeSource()
	effects := NewEffectsService(bus, host)
	observer := NewThemeObserver(bus, effects)
	defer observer.Close()

	effects.Apply(models.DefaultSettings()) // theme = system

	host.SetDark(true)
	if got := observer.Current().EffectiveTheme; got != models.ThemeModeDark {
		t.Errorf("Expected observer to follow host flip, got %q", got)
	}
}

func TestThemeObserverCloseStopsTracking(t *testing.T) {
	bus := event.NewBus()
	effects := NewEffectsService(bus, NewHostThemeSource())
	observer := NewThemeObserver(bus, effects)

	effects.Apply(models.DefaultSettings())
	observer.Close()

	snap := models.DefaultSettings()
	snap.Preferences.Theme = models.ThemeModeDark
	effects.Apply(snap)

	if got := observer.Current().EffectiveTheme; got == models.ThemeModeDark {
		t.Error("Expected view frozen after Close")
	}
}

func TestLocaleObserver(t *testing.T) {
	bus := event.NewBus()
	effects := NewEffectsService(bus, NewHostThemeSource())
	observer := NewLocaleObserver(bus, effects)
	defer observer.Close()

	snap := models.DefaultSettings()
	snap.Preferences.Language = "ar"
	effects.Apply(snap)

	view := observer.Current()
	if view.Language != "ar" {
		t.Errorf("Expected language ar, got %q", view.Language)
	}
	if view.Direction != models.DirectionRTL {
		t.Errorf("Expected rtl, got %q", view.Direction)
	}
}

func TestGridObserver(t *testing.T) {
	bus := event.NewBus()
	effects := NewEffectsService(bus, NewHostThemeSource())
	observer := NewGridObserver(bus, models.DefaultSettings())
	defer observer.Close()

	if got := observer.Current().PageSize; got != 25 {
		t.Errorf("Expected initial page size 25, got %d", got)
	}

	snap := models.DefaultSettings()
	snap.Preferences.Density = models.DensityCompact
	snap.Preferences.DefaultPageSize = 100
	snap.Preferences.AutoRefresh = true
	effects.Apply(snap)

	view := observer.Current()
	if view.Density != models.DensityCompact {
		t.Errorf("Expected density compact, got %q", view.Density)
	}
	if view.PageSize != 100 {
		t.Errorf("Expected page size 100, got %d", view.PageSize)
	}
	if !view.AutoRefresh {
		t.Error("Expected autoRefresh true")
	}
}
