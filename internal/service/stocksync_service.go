package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"techno-etl-service/internal/event"
	"techno-etl-service/internal/models"
)

// StockSource abstracts the MDM client for the orchestrator.
type StockSource interface {
	SyncStocks(ctx context.Context) error
	GetSources(ctx context.Context) ([]models.Source, error)
	SyncSource(ctx context.Context, source models.Source) error
	MarkSyncSuccess(ctx context.Context) error
}

// CacheInvalidator lets the orchestrator drop stale dashboard windows
// after a sync without depending on the dashboard service directly.
type CacheInvalidator interface {
	InvalidateCache()
}

const (
	successResetDelay = 3 * time.Second
	failureResetDelay = 5 * time.Second
)

// StockSyncService runs the MDM-to-Magento stock synchronization as a
// fixed sequence: mark stocks ready, list sources, sync each source in
// order (failures are collected, not fatal), then clear the needs-sync
// marker when at least one source went through. Progress is observable
// through a subscription and resets to idle shortly after a terminal
// state.
type StockSyncService struct {
	mu       sync.Mutex
	progress models.SyncProgress
	nextID   int
	watchers map[int]func(models.SyncProgress)

	source    StockSource
	dashboard CacheInvalidator
	bus       *event.Bus
	publisher event.Publisher

	// resetDelay overrides are only used by tests to avoid sleeping.
	successDelay time.Duration
	failureDelay time.Duration
}

func NewStockSyncService(source StockSource, dashboard CacheInvalidator, bus *event.Bus, publisher event.Publisher) *StockSyncService {
	return &StockSyncService{
		progress:     models.SyncProgress{CurrentStep: models.SyncStepIdle},
		watchers:     make(map[int]func(models.SyncProgress)),
		source:       source,
		dashboard:    dashboard,
		bus:          bus,
		publisher:    publisher,
		successDelay: successResetDelay,
		failureDelay: failureResetDelay,
	}
}

// Progress returns the current progress record.
func (s *StockSyncService) Progress() models.SyncProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneProgress(s.progress)
}

// Subscribe registers a progress listener; cancel is idempotent.
func (s *StockSyncService) Subscribe(callback func(models.SyncProgress)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = callback
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// SyncAll runs the full synchronization. A second call while a run is
// active returns a busy error immediately.
func (s *StockSyncService) SyncAll(ctx context.Context) (models.SyncProgress, error) {
	s.mu.Lock()
	if s.progress.IsActive {
		progress := cloneProgress(s.progress)
		s.mu.Unlock()
		return progress, newError(ErrBusy, "sync already running", nil)
	}
	s.progress = models.SyncProgress{
		IsActive:    true,
		CurrentStep: models.SyncStepInitSync,
		Message:     "Marking stocks for synchronization",
	}
	s.mu.Unlock()
	s.broadcast()

	if err := s.source.SyncStocks(ctx); err != nil {
		return s.fail(ErrUnknown, fmt.Sprintf("Failed to mark stocks: %v", err))
	}

	s.transition(func(p *models.SyncProgress) {
		p.CurrentStep = models.SyncStepFetchSources
		p.Message = "Fetching stock sources"
	})

	sources, err := s.source.GetSources(ctx)
	if err != nil {
		return s.fail(ErrUnknown, fmt.Sprintf("Failed to fetch sources: %v", err))
	}

	codes := make([]string, len(sources))
	for i, source := range sources {
		codes[i] = source.Code()
	}

	s.transition(func(p *models.SyncProgress) {
		p.CurrentStep = models.SyncStepSyncSources
		p.Total = len(sources)
		p.Sources = codes
		p.Message = fmt.Sprintf("Synchronizing %d sources", len(sources))
	})

	for i, source := range sources {
		code := source.Code()
		err := s.source.SyncSource(ctx, source)

		s.transition(func(p *models.SyncProgress) {
			p.Current = i + 1
			if err != nil {
				p.ErrorSources = append(p.ErrorSources, code)
				p.Message = fmt.Sprintf("Source %s failed", code)
			} else {
				p.CompletedSources = append(p.CompletedSources, code)
				p.Message = fmt.Sprintf("Synchronized source %s (%d/%d)", code, i+1, len(sources))
			}
		})
		if err != nil {
			log.Printf("Warning: source %s sync failed: %v", code, err)
		}
	}

	progress := s.Progress()
	if len(progress.CompletedSources) == 0 && len(sources) > 0 {
		return s.fail(ErrSourceSync, "All sources failed to synchronize")
	}

	s.transition(func(p *models.SyncProgress) {
		p.CurrentStep = models.SyncStepMarkSuccess
		p.Message = "Clearing needs-sync marker"
	})

	// Partial errors do not block the marker: it tracks batch
	// completion, not per-source atomicity.
	if err := s.source.MarkSyncSuccess(ctx); err != nil {
		return s.fail(ErrUnknown, fmt.Sprintf("Failed to mark sync success: %v", err))
	}

	return s.succeed()
}

func (s *StockSyncService) succeed() (models.SyncProgress, error) {
	var failed int
	s.transition(func(p *models.SyncProgress) {
		p.IsActive = false
		p.Completed = true
		p.CurrentStep = models.SyncStepDone
		failed = len(p.ErrorSources)
		if failed > 0 {
			p.Message = fmt.Sprintf("Sync finished: %d of %d sources failed", failed, p.Total)
		} else {
			p.Message = "Stock synchronization completed"
		}
	})

	progress := s.Progress()

	if failed > 0 {
		s.notify(event.SeverityWarning, progress.Message)
	} else {
		s.notify(event.SeveritySuccess, progress.Message)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishStockSyncCompleted(context.Background(), progress.CompletedSources, progress.ErrorSources, true); err != nil {
			log.Printf("Warning: failed to publish StockSyncCompleted: %v", err)
		}
	}

	time.AfterFunc(s.successDelay, func() {
		if s.dashboard != nil {
			s.dashboard.InvalidateCache()
		}
		s.reset()
	})

	return progress, nil
}

func (s *StockSyncService) fail(kind ErrorKind, message string) (models.SyncProgress, error) {
	s.transition(func(p *models.SyncProgress) {
		p.IsActive = false
		p.Completed = false
		p.CurrentStep = models.SyncStepFailed
		p.Message = message
	})

	progress := s.Progress()
	s.notify(event.SeverityError, message)

	if s.publisher != nil {
		if err := s.publisher.PublishStockSyncCompleted(context.Background(), progress.CompletedSources, progress.ErrorSources, false); err != nil {
			log.Printf("Warning: failed to publish StockSyncCompleted: %v", err)
		}
	}

	time.AfterFunc(s.failureDelay, s.reset)

	return progress, newError(kind, message, nil)
}

func (s *StockSyncService) reset() {
	s.mu.Lock()
	if s.progress.IsActive {
		// A new run started during the delay; leave it alone.
		s.mu.Unlock()
		return
	}
	s.progress = models.SyncProgress{CurrentStep: models.SyncStepIdle}
	s.mu.Unlock()
	s.broadcast()
}

func (s *StockSyncService) transition(mutate func(*models.SyncProgress)) {
	s.mu.Lock()
	mutate(&s.progress)
	s.mu.Unlock()
	s.broadcast()
}

func (s *StockSyncService) broadcast() {
	s.mu.Lock()
	progress := cloneProgress(s.progress)
	watchers := make([]func(models.SyncProgress), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(progress)
	}
}

func (s *StockSyncService) notify(severity event.Severity, message string) {
	s.bus.Publish(event.TopicNotification, event.Notification{
		Severity: severity,
		Message:  message,
	})
}

func cloneProgress(p models.SyncProgress) models.SyncProgress {
	out := p
	out.Sources = append([]string(nil), p.Sources...)
	out.CompletedSources = append([]string(nil), p.CompletedSources...)
	out.ErrorSources = append([]string(nil), p.ErrorSources...)
	return out
}
