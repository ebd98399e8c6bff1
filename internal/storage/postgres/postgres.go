// Package postgres implements the storage.Backend interface using GORM/PostgreSQL
// with an internal queue and a background DB writer goroutine.
package postgres

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/OCAP2/collision-benchmark/internal/database"
	"github.com/OCAP2/collision-benchmark/internal/model"
	"github.com/OCAP2/collision-benchmark/internal/model/convert"
	"github.com/OCAP2/collision-benchmark/internal/queue"
	"github.com/OCAP2/collision-benchmark/pkg/core"
)

// DefaultWriteInterval is how often queued failures are flushed.
const DefaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	// DB is created from the db.* config keys when nil.
	DB            *gorm.DB
	Logger        zerolog.Logger
	WriteInterval time.Duration
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	failures *queue.Queue[model.Failure]
	run      *model.Run
	runID    atomic.Uint64
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex // serializes flushes
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = DefaultWriteInterval
	}
	return &Backend{
		deps: deps,
	}
}

// Init runs schema migration and starts the DB writer goroutine.
// If no DB was injected via Dependencies, it creates its own postgres connection.
func (b *Backend) Init() error {
	b.failures = queue.New[model.Failure]()
	b.stopChan = make(chan struct{})

	if b.deps.DB == nil {
		db, err := database.GetPostgresDB()
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.deps.DB = db
	}

	if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.wg.Add(1)
	go b.writeLoop()
	return nil
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	select {
	case <-b.stopChan:
		return nil
	default:
	}
	close(b.stopChan)
	b.wg.Wait()
	b.flush()
	return nil
}

// StartRun inserts the run synchronously so failures can reference it.
func (b *Backend) StartRun(run *core.Run) error {
	gormRun := convert.CoreToRun(*run)
	if err := b.deps.DB.Create(&gormRun).Error; err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	b.mu.Lock()
	b.run = &gormRun
	b.mu.Unlock()
	b.runID.Store(uint64(gormRun.ID))
	return nil
}

// RunID returns the database id of the current run.
func (b *Backend) RunID() uint {
	return uint(b.runID.Load())
}

// RecordFailure converts and queues a failure.
func (b *Backend) RecordFailure(f *core.Failure) error {
	if b.runID.Load() == 0 {
		return fmt.Errorf("no run started")
	}
	b.failures.Push(convert.CoreToFailure(*f, 0))
	return nil
}

// EndRun flushes pending failures and stores the summary on the run row.
func (b *Backend) EndRun(summary *core.Summary) error {
	b.flush()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return fmt.Errorf("no run started")
	}
	if !b.failures.Empty() {
		return fmt.Errorf("%d failures could not be written", b.failures.Len())
	}

	convert.ApplySummary(b.run, *summary)
	if err := b.deps.DB.Save(b.run).Error; err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	b.run = nil
	b.runID.Store(0)
	return nil
}

// Pending returns the number of queued failures.
func (b *Backend) Pending() int {
	if b.failures == nil {
		return 0
	}
	return b.failures.Len()
}

// writeQueue writes all items from a queue to the database in a transaction.
// A failed batch goes back to the head of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log zerolog.Logger, prepare func([]T)) {
	if q.Empty() {
		return
	}

	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}

	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("table", name).Msg("Error creating rows")
		tx.Rollback()
		q.PushFront(items...)
		return
	}
	if err := tx.Commit().Error; err != nil {
		log.Error().Err(err).Str("table", name).Msg("Error committing rows")
		q.PushFront(items...)
		return
	}
	log.Debug().Int("count", len(items)).Str("table", name).Msg("Wrote rows")
}

func (b *Backend) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	runID := uint(b.runID.Load())
	writeQueue(b.deps.DB, b.failures, "failures", b.deps.Logger, func(items []model.Failure) {
		for i := range items {
			items[i].RunID = runID
		}
	})
}

// writeLoop periodically drains the queue into the DB.
func (b *Backend) writeLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}
