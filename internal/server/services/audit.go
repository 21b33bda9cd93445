package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const auditWriteTimeout = 5 * time.Second

// AuditLog appends security events without ever failing or blocking the
// operation they describe. With a positive buffer, events are written by
// a background goroutine and dropped (and counted) when the buffer is
// full. With a zero buffer they are written inline; errors are still
// only logged.
type AuditLog struct {
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time

	ch      chan models.SecurityEvent
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu is held shared while an event is handed over and exclusively
	// while closing, so nothing lands in ch after the final drain.
	mu     sync.RWMutex
	closed bool
}

func NewAuditLog(m repomanager.RepositoryManager, log logging.Logger, now func() time.Time, bufferSize int) *AuditLog {
	a := &AuditLog{repomanager: m, log: log, now: now}
	if bufferSize > 0 {
		a.ch = make(chan models.SecurityEvent, bufferSize)
		a.done = make(chan struct{})
		a.wg.Add(1)
		go a.run()
	}
	return a
}

// Append records one event for userID.
func (a *AuditLog) Append(ctx context.Context, userID string, t models.EventType, meta models.ClientMeta, details map[string]string) {
	if userID == "" {
		return
	}
	a.submit(ctx, models.SecurityEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: t,
		Category:  t.Category(),
		Details:   details,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		CreatedAt: a.now(),
	})
}

// submit hands e over and reports whether it was accepted, i.e. whether
// it is guaranteed to be written before Close returns.
func (a *AuditLog) submit(ctx context.Context, e models.SecurityEvent) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return false
	}
	if a.ch == nil {
		a.write(context.WithoutCancel(ctx), e)
		return true
	}

	select {
	case a.ch <- e:
		return true
	default:
		a.dropped.Add(1)
		a.log.Warn(ctx, "audit buffer full, event dropped", "event_type", string(e.EventType), "user_id", e.UserID)
		return false
	}
}

// Query reads the events of userID, most recent first.
func (a *AuditLog) Query(ctx context.Context, userID string, f models.SecurityEventFilter) ([]models.SecurityEvent, error) {
	return a.repomanager.SecurityLog(a.repomanager.Conn()).List(ctx, userID, f)
}

// Close stops accepting events and waits until buffered ones are written.
func (a *AuditLog) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if a.done != nil {
		close(a.done)
		a.wg.Wait()
	}
}

// Dropped is the number of events lost to a full buffer.
func (a *AuditLog) Dropped() uint64 {
	return a.dropped.Load()
}

func (a *AuditLog) run() {
	defer a.wg.Done()

	for {
		select {
		case e := <-a.ch:
			a.write(context.Background(), e)
		case <-a.done:
			for {
				select {
				case e := <-a.ch:
					a.write(context.Background(), e)
				default:
					return
				}
			}
		}
	}
}

func (a *AuditLog) write(ctx context.Context, e models.SecurityEvent) {
	ctx, cancel := context.WithTimeout(ctx, auditWriteTimeout)
	defer cancel()

	if err := a.repomanager.SecurityLog(a.repomanager.Conn()).Append(ctx, &e); err != nil {
		a.log.Error(ctx, "audit write failed", "event_type", string(e.EventType), "user_id", e.UserID, "error", err)
	}
}
