package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const JobPayslips = "payslips"

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrQueueFull = errors.New("job queue full")
	ErrNotFound  = errors.New("job not found")
)

type Run struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	TenantID    string     `json:"tenantId"`
	Status      Status     `json:"status"`
	Details     any        `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type Observer interface {
	JobFinished(jobType, status string)
}

type Service struct {
	queue     chan job
	observer  Observer
	retention time.Duration

	mu   sync.RWMutex
	runs map[string]*Run
}

type job struct {
	ID       string
	Type     string
	TenantID string
	Run      func(context.Context) (any, error)
}

// New creates a queue whose finished runs are kept for retention before pruning.
func New(observer Observer, retention time.Duration) *Service {
	return &Service{
		queue:     make(chan job, 128),
		observer:  observer,
		retention: retention,
		runs:      map[string]*Run{},
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.retention > 0 {
		go s.schedulePrune(ctx, s.retention)
	}
}

func (s *Service) Enqueue(jobType, tenantID string, run func(context.Context) (any, error)) (Run, error) {
	j := job{ID: uuid.NewString(), Type: jobType, TenantID: tenantID, Run: run}
	record := &Run{ID: j.ID, Type: jobType, TenantID: tenantID, Status: StatusQueued, CreatedAt: time.Now().UTC()}

	s.mu.Lock()
	s.runs[j.ID] = record
	s.mu.Unlock()

	select {
	case s.queue <- j:
		return *record, nil
	default:
		s.mu.Lock()
		delete(s.runs, j.ID)
		s.mu.Unlock()
		slog.Warn("job queue full", "jobType", jobType, "tenantId", tenantID)
		return Run{}, ErrQueueFull
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, tenantID string, run func(context.Context) (any, error)) (any, error) {
	j := job{ID: uuid.NewString(), Type: jobType, TenantID: tenantID, Run: run}
	s.mu.Lock()
	s.runs[j.ID] = &Run{ID: j.ID, Type: jobType, TenantID: tenantID, Status: StatusQueued, CreatedAt: time.Now().UTC()}
	s.mu.Unlock()
	return s.runJob(ctx, j)
}

// Get returns a run only to the tenant that enqueued it.
func (s *Service) Get(tenantID, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok || run.TenantID != tenantID {
		return Run{}, ErrNotFound
	}
	return *run, nil
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "jobId", j.ID, "tenantId", j.TenantID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	s.update(j.ID, func(r *Run) { r.Status = StatusRunning })

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	now := time.Now().UTC()
	s.update(j.ID, func(r *Run) {
		r.Status = status
		r.Details = details
		r.CompletedAt = &now
		if err != nil {
			r.Error = err.Error()
		}
	})
	if s.observer != nil {
		s.observer.JobFinished(j.Type, string(status))
	}
	return details, err
}

func (s *Service) update(id string, fn func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		fn(run)
	}
}

func (s *Service) schedulePrune(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if pruned := s.prune(now.Add(-s.retention)); pruned > 0 {
				slog.Debug("job runs pruned", "count", pruned)
			}
		}
	}
}

// prune drops finished runs completed before cutoff.
func (s *Service) prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, run := range s.runs {
		if run.CompletedAt != nil && run.CompletedAt.Before(cutoff) {
			delete(s.runs, id)
			pruned++
		}
	}
	return pruned
}
