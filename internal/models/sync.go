package models

// Source is one MDM stock source record. Records are forwarded verbatim
// as the body of the per-source sync call, so the shape stays generic.
type Source map[string]any

// Code returns the source identifier used in progress reporting.
func (s Source) Code() string {
	if code, ok := s["code_source"].(string); ok {
		return code
	}
	if code, ok := s["code"].(string); ok {
		return code
	}
	return "unknown"
}

// SyncStep identifies the current step of the stock-sync state machine.
type SyncStep string

const (
	SyncStepIdle         SyncStep = "idle"
	SyncStepInitSync     SyncStep = "initSync"
	SyncStepFetchSources SyncStep = "fetchSources"
	SyncStepSyncSources  SyncStep = "syncSources"
	SyncStepMarkSuccess  SyncStep = "markSuccess"
	SyncStepDone         SyncStep = "done"
	SyncStepFailed       SyncStep = "failed"
)

// SyncProgress is the externally visible progress record.
type SyncProgress struct {
	Current          int      `json:"current"`
	Total            int      `json:"total"`
	IsActive         bool     `json:"isActive"`
	Completed        bool     `json:"completed"`
	CurrentStep      SyncStep `json:"currentStep"`
	Sources          []string `json:"sources"`
	CompletedSources []string `json:"completedSources"`
	ErrorSources     []string `json:"errorSources"`
	Message          string   `json:"message"`
}
