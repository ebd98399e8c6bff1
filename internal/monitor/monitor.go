package monitor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/collision-benchmark/internal/session"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session *session.Context
	// Progress reports visited and total cells of the running sweep.
	Progress func() (done, total int)
	// Pending reports failures not yet written by the storage backend.
	// Optional.
	Pending    func() int
	StatusFile string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Status is the snapshot written to the status file.
type Status struct {
	Time       time.Time `json:"time"`
	RunID      uuid.UUID `json:"runId"`
	Model1     string    `json:"model1"`
	Model2     string    `json:"model2"`
	Engines    []string  `json:"engines"`
	CellsDone  int       `json:"cellsDone"`
	CellsTotal int       `json:"cellsTotal"`
	Percent    float64   `json:"percent"`
	Failures   int       `json:"failures"`
	Pending    int       `json:"pending"`
	Finished   bool      `json:"finished"`
	Elapsed    string    `json:"elapsed"`
}

// Service periodically writes run progress to a status file.
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current progress. ok is false before a run starts.
func (s *Service) GetStatus() (st Status, ok bool) {
	run := s.deps.Session.GetRun()
	if run == nil {
		return Status{}, false
	}

	st = Status{
		Time:    time.Now(),
		RunID:   run.ID,
		Model1:  run.Model1,
		Model2:  run.Model2,
		Engines: run.Engines,
		Elapsed: time.Since(run.StartTime).Round(time.Millisecond).String(),
	}
	if s.deps.Progress != nil {
		st.CellsDone, st.CellsTotal = s.deps.Progress()
	}
	if st.CellsTotal > 0 {
		st.Percent = 100 * float64(st.CellsDone) / float64(st.CellsTotal)
	}
	if last := s.deps.Session.LastFailure(); last != nil {
		st.Failures = last.Number
	}
	if s.deps.Pending != nil {
		st.Pending = s.deps.Pending()
	}
	if sum := s.deps.Session.GetSummary(); sum != nil {
		st.Finished = true
		st.Failures = sum.Failures
		st.Elapsed = sum.Duration.Round(time.Millisecond).String()
	}
	return st, true
}

// WriteStatus replaces the status file with the current status. Nothing is
// written before a run starts.
func (s *Service) WriteStatus() error {
	st, ok := s.GetStatus()
	if !ok {
		return nil
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	// write then rename so readers never see a partial file
	tmp := s.deps.StatusFile + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing status file: %w", err)
	}
	if err := os.Rename(tmp, s.deps.StatusFile); err != nil {
		return fmt.Errorf("replacing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine. It is a no-op without a status
// file or when already running.
func (s *Service) Start() error {
	if s.deps.StatusFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.deps.StatusFile), 0755); err != nil {
		return fmt.Errorf("creating status directory: %w", err)
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "file", s.deps.StatusFile, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing final status", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor after one last write and waits for it.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
	s.mu.Unlock()
	s.wg.Wait()
}
