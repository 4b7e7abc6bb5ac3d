package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"techno-etl-service/internal/event"
	"techno-etl-service/internal/models"
)

// LocalStore is the device-scoped persistence tier.
type LocalStore interface {
	ReadUnified() *models.Settings
	WriteUnified(snap *models.Settings) bool
	ReadUser(uid string) (*models.Settings, bool)
	WriteUser(uid string, snap *models.Settings) bool
	ReadLastModified() int64
	ClearAll() error
}

// RemoteStore is the per-user remote tier.
type RemoteStore interface {
	Load(ctx context.Context, uid string) (*models.RemoteSettings, error)
	Save(ctx context.Context, uid string, snap *models.Settings) error
	Watch(ctx context.Context, uid string, callback func(*models.RemoteSettings)) (func(), error)
}

// SaveResult is what Save returns instead of an error.
type SaveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const autoSaveDebounce = time.Second

// SettingsService is the reconciler: it owns the single active
// snapshot, merges writers (local edits, remote live updates, auth
// transitions) and projects every accepted snapshot through the effect
// applier. None of its methods panic or propagate transport errors to
// callers.
type SettingsService struct {
	mu        sync.Mutex
	current   *models.Settings
	isDirty   bool
	user      *event.User
	watchStop func()

	flushTimer *time.Timer
	debounce   time.Duration

	local     LocalStore
	remote    RemoteStore
	effects   *EffectsService
	bus       *event.Bus
	publisher event.Publisher

	unsubscribeAuth func()
}

func NewSettingsService(local LocalStore, remote RemoteStore, effects *EffectsService, bus *event.Bus, publisher event.Publisher) *SettingsService {
	s := &SettingsService{
		current:   local.ReadUnified(),
		debounce:  autoSaveDebounce,
		local:     local,
		remote:    remote,
		effects:   effects,
		bus:       bus,
		publisher: publisher,
	}

	// The auth subsystem is reached only through the event surface;
	// neither side imports the other.
	s.unsubscribeAuth = bus.Subscribe(event.TopicAuthStateChanged, func(payload any) {
		state, ok := payload.(event.AuthState)
		if !ok {
			return
		}
		if state.CurrentUser != nil {
			s.signIn(state.CurrentUser)
		} else {
			s.signOut()
		}
	})

	effects.Apply(s.currentClone())
	return s
}

// GetSnapshot returns the active snapshot synchronously.
func (s *SettingsService) GetSnapshot() *models.Settings {
	return s.currentClone()
}

func (s *SettingsService) currentClone() *models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Update merges a patch into the active snapshot. With a section name
// the patch is shallow-merged into that section only; without one it
// is deep-merged over the whole tree. The result is validated through
// the defensive merge, persisted to the local tier on the auto-save
// debounce, and applied optimistically. Remote is not touched.
func (s *SettingsService) Update(patch map[string]any, section string) *models.Settings {
	s.mu.Lock()

	tree := s.current.AsMap()
	switch section {
	case "":
		deepMergeMaps(tree, patch)
	case "preferences", "performance", "accessibility":
		sectionTree, _ := tree[section].(map[string]any)
		if sectionTree == nil {
			sectionTree = make(map[string]any)
		}
		for k, v := range patch {
			sectionTree[k] = v
		}
		tree[section] = sectionTree
	default:
		log.Printf("Warning: update ignored unknown section %q", section)
		snap := s.current.Clone()
		s.mu.Unlock()
		return snap
	}

	resolveLargeTextPatch(tree, patch, section)

	merged := models.Merge(tree)
	merged.LastModified = nextStamp(s.current.LastModified)
	merged.UserID = s.ownerLocked()

	s.current = merged
	s.isDirty = true
	s.scheduleFlushLocked()

	snap := merged.Clone()
	s.mu.Unlock()

	s.effects.Apply(snap)
	return snap
}

// Save persists the active snapshot: local first (must succeed), then
// remote best-effort when a user is signed in. Idempotent while clean
// unless forced.
func (s *SettingsService) Save(ctx context.Context, force bool) SaveResult {
	s.mu.Lock()
	if !s.isDirty && !force {
		s.mu.Unlock()
		return SaveResult{Success: true, Message: "No changes to save"}
	}

	snap := s.current.Clone()
	user := s.user
	s.mu.Unlock()

	if !s.writeLocal(snap, user) {
		s.notify(event.SeverityError, "Failed to save settings locally")
		return SaveResult{Success: false, Message: "failed to save locally"}
	}

	s.mu.Lock()
	s.isDirty = false
	s.cancelFlushLocked()
	s.mu.Unlock()

	message := "Settings saved"
	remoteDegraded := false
	if user != nil {
		if err := s.remote.Save(ctx, user.UID, snap); err != nil {
			log.Printf("Warning: remote settings save failed for %s: %v", user.UID, err)
			s.notify(event.SeverityWarning, "Settings saved locally; will sync when connection returns")
			message = "Settings saved locally"
			remoteDegraded = true
		} else if s.publisher != nil {
			if err := s.publisher.PublishSettingsSynced(ctx, user.UID, snap.LastModified); err != nil {
				log.Printf("Warning: failed to publish SettingsSynced: %v", err)
			}
		}
	}

	s.bus.Publish(event.TopicSettingsSync, event.SettingsSync{
		UserSettings: snap,
		UserID:       snap.UserID,
	})
	// The warning already told the user where the save landed; one
	// toast per outcome.
	if !remoteDegraded {
		s.notify(event.SeveritySuccess, message)
	}

	return SaveResult{Success: true, Message: message}
}

// Reset replaces the active snapshot with the defaults and clears every
// known local key.
func (s *SettingsService) Reset() *models.Settings {
	s.mu.Lock()

	defaults := models.DefaultSettings()
	defaults.LastModified = nextStamp(s.current.LastModified)
	defaults.UserID = s.ownerLocked()

	s.current = defaults
	s.isDirty = true
	s.scheduleFlushLocked()

	snap := defaults.Clone()
	s.mu.Unlock()

	if err := s.local.ClearAll(); err != nil {
		log.Printf("Warning: failed to clear local settings keys: %v", err)
	}

	s.effects.Apply(snap)
	return snap
}

// Export serializes the active snapshot as JSON with stable key
// ordering.
func (s *SettingsService) Export() ([]byte, error) {
	snap := s.currentClone()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, newError(ErrUnknown, "failed to serialize settings", err)
	}
	return data, nil
}

// Import parses raw JSON, merges it with the defaults and makes the
// result the active snapshot. It fails only on a parse failure.
func (s *SettingsService) Import(raw []byte) (*models.Settings, error) {
	merged, err := models.MergeJSON(raw)
	if err != nil {
		return nil, newError(ErrParseFailure, "invalid settings file", err)
	}

	s.mu.Lock()
	merged.LastModified = nextStamp(s.current.LastModified)
	merged.UserID = s.ownerLocked()
	s.current = merged
	s.isDirty = true
	s.scheduleFlushLocked()
	snap := merged.Clone()
	s.mu.Unlock()

	s.effects.Apply(snap)
	return snap, nil
}

// LoadRemote fetches the signed-in user's remote snapshot and adopts it
// unconditionally (remote wins an explicit load, even on a timestamp
// tie). The local snapshot survives transport failures.
func (s *SettingsService) LoadRemote(ctx context.Context) (*models.Settings, error) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()

	if user == nil {
		return s.currentClone(), newError(ErrNotAuthenticated, "no user signed in", nil)
	}

	doc, err := s.remote.Load(ctx, user.UID)
	if err != nil {
		log.Printf("Warning: failed to load remote settings for %s: %v", user.UID, err)
		s.notify(event.SeverityWarning, "Could not reach settings sync; using local settings")
		return s.currentClone(), newError(ErrRemoteTransport, "remote settings unavailable", err)
	}
	if doc == nil {
		return s.currentClone(), nil
	}

	snap := s.adoptRemote(user.UID, doc)

	s.bus.Publish(event.TopicUserSettingsLoaded, snap)
	s.notify(event.SeverityInfo, "Welcome back! Your settings have been restored")
	return snap, nil
}

// adoptRemote merges a remote document over defaults, makes it current
// and mirrors it locally. Remote adoption never marks the snapshot
// dirty; the change did not originate here.
func (s *SettingsService) adoptRemote(uid string, doc *models.RemoteSettings) *models.Settings {
	merged := models.Merge(doc.Settings.AsMap())
	merged.UserID = uid

	s.mu.Lock()
	s.current = merged
	snap := merged.Clone()
	user := s.user
	s.mu.Unlock()

	s.writeLocal(snap, user)
	s.effects.Apply(snap)
	return snap
}

// handleRemoteUpdate is the change-stream callback. Stale updates are
// gated by a strictly-greater lastModified comparison against the most
// recent local write and dropped silently.
func (s *SettingsService) handleRemoteUpdate(doc *models.RemoteSettings) {
	threshold := s.local.ReadLastModified()
	if doc.LastModified <= threshold {
		log.Printf("Ignoring stale remote settings update (%d <= %d)", doc.LastModified, threshold)
		return
	}

	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user == nil {
		return
	}

	s.adoptRemote(user.UID, doc)
}

func (s *SettingsService) signIn(user *event.User) {
	s.stopWatch()

	s.mu.Lock()
	anonymous := s.current.Clone()
	s.user = user
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	doc, err := s.remote.Load(ctx, user.UID)
	cancel()

	switch {
	case err != nil:
		log.Printf("Warning: failed to load remote settings for %s: %v", user.UID, err)
		s.notify(event.SeverityWarning, "Could not reach settings sync; using local settings")
		s.adoptLocalUser(user.UID, anonymous)
	case doc != nil:
		snap := s.adoptRemote(user.UID, doc)
		s.bus.Publish(event.TopicUserSettingsLoaded, snap)
		s.notify(event.SeverityInfo, "Welcome back! Your settings have been restored")
	default:
		s.adoptLocalUser(user.UID, anonymous)
	}

	stop, err := s.remote.Watch(context.Background(), user.UID, s.handleRemoteUpdate)
	if err != nil {
		log.Printf("Warning: failed to watch remote settings for %s: %v", user.UID, err)
		return
	}
	s.mu.Lock()
	s.watchStop = stop
	s.mu.Unlock()
}

// adoptLocalUser falls back to the cached per-user tier, or promotes
// the anonymous snapshot when the user has never saved on this device.
func (s *SettingsService) adoptLocalUser(uid string, anonymous *models.Settings) {
	cached, exists := s.local.ReadUser(uid)

	var snap *models.Settings
	if exists {
		snap = cached
		snap.UserID = uid
	} else {
		snap = anonymous
		snap.UserID = uid
		snap.LastModified = nextStamp(snap.LastModified)
	}

	s.mu.Lock()
	s.current = snap
	s.isDirty = !exists // a promoted snapshot still needs a save
	if s.isDirty {
		s.scheduleFlushLocked()
	}
	applied := snap.Clone()
	s.mu.Unlock()

	s.effects.Apply(applied)
}

func (s *SettingsService) signOut() {
	s.mu.Lock()
	dirty := s.isDirty
	snap := s.current.Clone()
	user := s.user
	s.mu.Unlock()

	if dirty && user != nil {
		// Best-effort local checkpoint before the snapshot is replaced.
		s.writeLocal(snap, user)
	}

	s.stopWatch()

	s.mu.Lock()
	s.user = nil
	s.current = s.local.ReadUnified()
	s.isDirty = false
	s.cancelFlushLocked()
	applied := s.current.Clone()
	s.mu.Unlock()

	s.effects.Apply(applied)
}

func (s *SettingsService) stopWatch() {
	s.mu.Lock()
	stop := s.watchStop
	s.watchStop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Close detaches the service from the bus and any remote subscription.
func (s *SettingsService) Close() {
	s.stopWatch()
	s.mu.Lock()
	s.cancelFlushLocked()
	s.mu.Unlock()
	if s.unsubscribeAuth != nil {
		s.unsubscribeAuth()
	}
}

// writeLocal mirrors the snapshot to the matching local tier.
func (s *SettingsService) writeLocal(snap *models.Settings, user *event.User) bool {
	if user != nil {
		return s.local.WriteUser(user.UID, snap)
	}
	return s.local.WriteUnified(snap)
}

// scheduleFlushLocked arms (or re-arms) the auto-save timer so a burst
// of updates collapses into a single local write after the quiescence
// interval. Auto-save never writes remote.
func (s *SettingsService) scheduleFlushLocked() {
	if s.flushTimer != nil {
		s.flushTimer.Reset(s.debounce)
		return
	}
	s.flushTimer = time.AfterFunc(s.debounce, s.flushLocal)
}

func (s *SettingsService) cancelFlushLocked() {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
}

func (s *SettingsService) flushLocal() {
	s.mu.Lock()
	if !s.isDirty {
		s.mu.Unlock()
		return
	}
	snap := s.current.Clone()
	user := s.user
	s.flushTimer = nil
	s.mu.Unlock()

	if !s.writeLocal(snap, user) {
		log.Printf("Warning: auto-save flush failed")
	}
}

func (s *SettingsService) ownerLocked() string {
	if s.user != nil {
		return s.user.UID
	}
	return models.AnonymousUserID
}

func (s *SettingsService) notify(severity event.Severity, message string) {
	s.bus.Publish(event.TopicNotification, event.Notification{
		Severity: severity,
		Message:  message,
	})
}

// nextStamp advances the write clock, staying strictly monotonic even
// when two writes land in the same millisecond.
func nextStamp(prev int64) int64 {
	now := time.Now().UnixMilli()
	if now <= prev {
		return prev + 1
	}
	return now
}

// resolveLargeTextPatch keeps accessibility.largeText paired with
// preferences.fontSize == "large" across updates. The tree handed to
// the defensive merge is rebuilt from the full current snapshot, so
// both fields always look present there; which one drives the pairing
// has to be decided here from the keys the patch actually carries.
// A patched fontSize wins over a patched largeText in the same call.
func resolveLargeTextPatch(tree, patch map[string]any, section string) {
	var fontSizeProvided, largeTextProvided bool
	var largeTextRaw any

	switch section {
	case "preferences":
		_, fontSizeProvided = patch["fontSize"]
	case "accessibility":
		largeTextRaw, largeTextProvided = patch["largeText"]
	case "":
		if sec, ok := patch["preferences"].(map[string]any); ok {
			_, fontSizeProvided = sec["fontSize"]
		}
		if sec, ok := patch["accessibility"].(map[string]any); ok {
			largeTextRaw, largeTextProvided = sec["largeText"]
		}
	}

	if fontSizeProvided || !largeTextProvided {
		return
	}
	large, ok := largeTextRaw.(bool)
	if !ok {
		return
	}

	prefs, _ := tree["preferences"].(map[string]any)
	if prefs == nil {
		prefs = make(map[string]any)
		tree["preferences"] = prefs
	}
	if large {
		prefs["fontSize"] = string(models.FontSizeLarge)
	} else if current, _ := prefs["fontSize"].(string); current == string(models.FontSizeLarge) {
		prefs["fontSize"] = string(models.FontSizeMedium)
	}
}

// deepMergeMaps merges src into dst in place, recursing through nested
// objects and overwriting scalars and arrays.
func deepMergeMaps(dst, src map[string]any) {
	for key, value := range src {
		if srcMap, ok := value.(map[string]any); ok {
			if dstMap, ok := dst[key].(map[string]any); ok {
				deepMergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[key] = value
	}
}
