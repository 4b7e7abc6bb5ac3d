package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"techno-etl-service/internal/event"
	"techno-etl-service/internal/models"
)

type fakeStockSource struct {
	sources []models.Source

	syncStocksErr  error
	sourcesErr     error
	markSuccessErr error
	failCodes      map[string]bool

	syncedCodes []string
	markCalls   int

	// block holds SyncStocks until released, for busy-guard tests.
	block chan struct{}
}

func (f *fakeStockSource) SyncStocks(ctx context.Context) error {
	if f.block != nil {
		<-f.block
	}
	return f.syncStocksErr
}

func (f *fakeStockSource) GetSources(ctx context.Context) ([]models.Source, error) {
	if f.sourcesErr != nil {
		return nil, f.sourcesErr
	}
	return f.sources, nil
}

func (f *fakeStockSource) SyncSource(ctx context.Context, source models.Source) error {
	code := source.Code()
	if f.failCodes[code] {
		return errors.New("source unreachable")
	}
	f.syncedCodes = append(f.syncedCodes, code)
	return nil
}

func (f *fakeStockSource) MarkSyncSuccess(ctx context.Context) error {
	f.markCalls++
	return f.markSuccessErr
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) InvalidateCache() { f.calls++ }

func sourceList(codes ...string) []models.Source {
	out := make([]models.Source, len(codes))
	for i, code := range codes {
		out[i] = models.Source{"code_source": code}
	}
	return out
}

func newTestSyncService(source *fakeStockSource) (*StockSyncService, *fakeInvalidator, *event.Bus) {
	bus := event.NewBus()
	invalidator := &fakeInvalidator{}
	s := NewStockSyncService(source, invalidator, bus, nil)
	s.successDelay = time.Millisecond
	s.failureDelay = time.Millisecond
	return s, invalidator, bus
}

func TestSyncAllHappyPath(t *testing.T) {
	source := &fakeStockSource{sources: sourceList("16", "20", "31")}
	s, invalidator, _ := newTestSyncService(source)

	progress, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !progress.Completed {
		t.Error("Expected completed progress")
	}
	if progress.CurrentStep != models.SyncStepDone {
		t.Errorf("Expected done step, got %q", progress.CurrentStep)
	}
	if len(progress.CompletedSources) != 3 || len(progress.ErrorSources) != 0 {
		t.Errorf("Expected 3 completed / 0 failed, got %d/%d", len(progress.CompletedSources), len(progress.ErrorSources))
	}
	if progress.Current != 3 || progress.Total != 3 {
		t.Errorf("Expected 3/3, got %d/%d", progress.Current, progress.Total)
	}
	if source.markCalls != 1 {
		t.Errorf("Expected one MarkSyncSuccess call, got %d", source.markCalls)
	}

	// The dashboard cache is dropped shortly after the run finishes.
	time.Sleep(30 * time.Millisecond)
	if invalidator.calls != 1 {
		t.Errorf("Expected one cache invalidation, got %d", invalidator.calls)
	}
	if s.Progress().CurrentStep != models.SyncStepIdle {
		t.Errorf("Expected reset to idle, got %q", s.Progress().CurrentStep)
	}
}

func TestSyncAllSourcesSyncedInOrder(t *testing.T) {
	source := &fakeStockSource{sources: sourceList("a", "b", "c")}
	s, _, _ := newTestSyncService(source)

	if _, err := s.SyncAll(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(source.syncedCodes) != 3 || source.syncedCodes[0] != "a" || source.syncedCodes[1] != "b" || source.syncedCodes[2] != "c" {
		t.Errorf("Expected sources synced in listing order, got %v", source.syncedCodes)
	}
}

func TestSyncAllPartialFailure(t *testing.T) {
	source := &fakeStockSource{
		sources:   sourceList("a", "b", "c"),
		failCodes: map[string]bool{"b": true},
	}
	s, _, bus := newTestSyncService(source)
	notes := collectNotifications(bus)

	progress, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("Expected partial failure to still succeed, got %v", err)
	}
	if !progress.Completed {
		t.Error("Expected completed progress")
	}
	if len(progress.CompletedSources) != 2 {
		t.Errorf("Expected 2 completed, got %v", progress.CompletedSources)
	}
	if len(progress.ErrorSources) != 1 || progress.ErrorSources[0] != "b" {
		t.Errorf("Expected b failed, got %v", progress.ErrorSources)
	}
	if len(progress.CompletedSources)+len(progress.ErrorSources) != progress.Total {
		t.Error("Expected every source accounted for")
	}
	if source.markCalls != 1 {
		t.Error("Expected MarkSyncSuccess despite a partial failure")
	}

	foundWarning := false
	for _, n := range *notes {
		if n.Severity == event.SeverityWarning {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Error("Expected warning notification for partial failure")
	}
}

func TestSyncAllAllSourcesFail(t *testing.T) {
	source := &fakeStockSource{
		sources:   sourceList("a", "b"),
		failCodes: map[string]bool{"a": true, "b": true},
	}
	s, _, bus := newTestSyncService(source)
	notes := collectNotifications(bus)

	progress, err := s.SyncAll(context.Background())
	if err == nil {
		t.Fatal("Expected error when every source fails")
	}
	if KindOf(err) != ErrSourceSync {
		t.Errorf("Expected sourceSyncFailure, got %q", KindOf(err))
	}
	if progress.CurrentStep != models.SyncStepFailed {
		t.Errorf("Expected failed step, got %q", progress.CurrentStep)
	}
	if source.markCalls != 0 {
		t.Error("Expected no MarkSyncSuccess when every source failed")
	}

	foundError := false
	for _, n := range *notes {
		if n.Severity == event.SeverityError {
			foundError = true
		}
	}
	if !foundError {
		t.Error("Expected error notification")
	}
}

func TestSyncAllEmptySourceList(t *testing.T) {
	source := &fakeStockSource{}
	s, _, _ := newTestSyncService(source)

	progress, err := s.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("Expected empty source list to complete, got %v", err)
	}
	if !progress.Completed {
		t.Error("Expected completed progress for empty list")
	}
	if source.markCalls != 1 {
		t.Error("Expected MarkSyncSuccess for empty list")
	}
}

func TestSyncAllInitFailure(t *testing.T) {
	source := &fakeStockSource{syncStocksErr: errors.New("mdm down")}
	s, _, _ := newTestSyncService(source)

	progress, err := s.SyncAll(context.Background())
	if err == nil {
		t.Fatal("Expected error when marking stocks fails")
	}
	if KindOf(err) != ErrUnknown {
		t.Errorf("Expected unknown error kind for init failure, got %q", KindOf(err))
	}
	if progress.CurrentStep != models.SyncStepFailed {
		t.Errorf("Expected failed step, got %q", progress.CurrentStep)
	}
	if len(source.syncedCodes) != 0 {
		t.Error("Expected no source syncs after init failure")
	}
}

func TestSyncAllMarkSuccessFailureKind(t *testing.T) {
	source := &fakeStockSource{
		sources:        sourceList("a"),
		markSuccessErr: errors.New("mdm down"),
	}
	s, _, _ := newTestSyncService(source)

	progress, err := s.SyncAll(context.Background())
	if err == nil {
		t.Fatal("Expected error when clearing the needs-sync marker fails")
	}
	if KindOf(err) != ErrUnknown {
		t.Errorf("Expected unknown error kind for marker failure, got %q", KindOf(err))
	}
	if progress.CurrentStep != models.SyncStepFailed {
		t.Errorf("Expected failed step, got %q", progress.CurrentStep)
	}
}

func TestSyncAllBusyGuard(t *testing.T) {
	source := &fakeStockSource{
		sources: sourceList("a"),
		block:   make(chan struct{}),
	}
	s, _, _ := newTestSyncService(source)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		s.SyncAll(context.Background())
		close(done)
	}()

	<-started
	// Wait until the first run is marked active.
	deadline := time.After(time.Second)
	for !s.Progress().IsActive {
		select {
		case <-deadline:
			t.Fatal("First run never became active")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	_, err := s.SyncAll(context.Background())
	if KindOf(err) != ErrBusy {
		t.Errorf("Expected busy error for concurrent run, got %v", err)
	}

	close(source.block)
	<-done
}

func TestProgressSubscription(t *testing.T) {
	source := &fakeStockSource{sources: sourceList("a", "b")}
	s, _, _ := newTestSyncService(source)

	var steps []models.SyncStep
	cancel := s.Subscribe(func(p models.SyncProgress) {
		if len(steps) == 0 || steps[len(steps)-1] != p.CurrentStep {
			steps = append(steps, p.CurrentStep)
		}
	})
	defer cancel()

	if _, err := s.SyncAll(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := []models.SyncStep{
		models.SyncStepInitSync,
		models.SyncStepFetchSources,
		models.SyncStepSyncSources,
		models.SyncStepMarkSuccess,
		models.SyncStepDone,
	}
	if len(steps) < len(want) {
		t.Fatalf("Expected at least %d distinct steps, got %v", len(want), steps)
	}
	for i, step := range want {
		if steps[i] != step {
			t.Errorf("Expected step %d to be %q, got %q", i, step, steps[i])
		}
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	source := &fakeStockSource{sources: sourceList("a")}
	s, _, _ := newTestSyncService(source)

	calls := 0
	cancel := s.Subscribe(func(models.SyncProgress) { calls++ })
	cancel()
	cancel()

	if _, err := s.SyncAll(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no callbacks after cancel, got %d", calls)
	}
}

func TestSourceCodeFallbacks(t *testing.T) {
	testCases := []struct {
		name   string
		source models.Source
		want   string
	}{
		{"code_source wins", models.Source{"code_source": "16", "code": "x"}, "16"},
		{"code fallback", models.Source{"code": "20"}, "20"},
		{"unknown", models.Source{"succursale": "y"}, "unknown"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.source.Code(); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}
