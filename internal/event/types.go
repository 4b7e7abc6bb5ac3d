package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"techno-etl-service/internal/models"
)

// User is the slice of the auth subsystem's user this service consumes.
type User struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// AuthState is the payload of TopicAuthStateChanged. CurrentUser is nil
// on sign-out.
type AuthState struct {
	CurrentUser *User
}

// ThemeChanged is the payload of TopicThemeChanged.
type ThemeChanged struct {
	Theme        models.ThemeMode   `json:"theme"`
	FontSize     models.FontSize    `json:"fontSize"`
	Density      models.Density     `json:"density"`
	Animations   bool               `json:"animations"`
	HighContrast bool               `json:"highContrast"`
	ColorPreset  models.ColorPreset `json:"colorPreset"`
	Snapshot     *models.Settings   `json:"-"`
}

// LanguageChanged is the payload of TopicLanguageChanged.
type LanguageChanged struct {
	Language  string           `json:"language"`
	Direction models.Direction `json:"direction"`
	Snapshot  *models.Settings `json:"-"`
}

// SettingsSync is the payload of TopicSettingsSync, fired after an
// explicit save.
type SettingsSync struct {
	UserSettings *models.Settings `json:"userSettings"`
	UserID       string           `json:"userId"`
}

// Severity levels for user-visible notifications.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is the payload of TopicNotification; the toast surface
// renders one toast per event.
type Notification struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Routing keys on the RabbitMQ exchanges.
type EventType string

const (
	// Inbound from the auth subsystem (user-events exchange).
	UserLoggedIn  EventType = "user.logged_in"
	UserLoggedOut EventType = "user.logged_out"

	// Outbound on the etl-events exchange.
	SettingsSynced     EventType = "settings.synced"
	StockSyncCompleted EventType = "stock.sync.completed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Version   string    `json:"version"`
}

func newBaseEvent(t EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().Unix(),
		Version:   "1.0",
	}
}

// UserSessionEvent is the auth-service lifecycle event this service
// consumes to drive sign-in and sign-out transitions.
type UserSessionEvent struct {
	BaseEvent
	UserID      string   `json:"user_id"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type SettingsSyncedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	LastModified int64  `json:"last_modified"`
}

func NewSettingsSyncedEvent(userID string, lastModified int64) *SettingsSyncedEvent {
	return &SettingsSyncedEvent{
		BaseEvent:    newBaseEvent(SettingsSynced),
		UserID:       userID,
		LastModified: lastModified,
	}
}

func (e *SettingsSyncedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

type StockSyncCompletedEvent struct {
	BaseEvent
	CompletedSources []string `json:"completed_sources"`
	ErrorSources     []string `json:"error_sources"`
	Success          bool     `json:"success"`
}

func NewStockSyncCompletedEvent(completed, failed []string, success bool) *StockSyncCompletedEvent {
	return &StockSyncCompletedEvent{
		BaseEvent:        newBaseEvent(StockSyncCompleted),
		CompletedSources: completed,
		ErrorSources:     failed,
		Success:          success,
	}
}

func (e *StockSyncCompletedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
