package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/pinvault/internal/server/repositories/securitylog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_Buffered(t *testing.T) {
	ctx := context.Background()
	m := repomanager.NewInMemoryRepositoryManager()
	clk := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	a := NewAuditLog(m, logging.Nop{}, clk.Now, 16)

	for i := 0; i < 5; i++ {
		a.Append(ctx, someUser, models.EventLoginFailure, phone, nil)
	}
	a.Close()

	list, err := a.Query(ctx, someUser, models.SecurityEventFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 5)
	assert.Equal(t, models.CategoryAuth, list[0].Category)
	assert.Zero(t, a.Dropped())

	// after Close events are ignored
	a.Append(ctx, someUser, models.EventLogout, phone, nil)
	a.Close()
	list, err = a.Query(ctx, someUser, models.SecurityEventFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 5)
}

type blockingLog struct {
	securitylog.Repository
	release chan struct{}
}

func (b blockingLog) Append(ctx context.Context, e *models.SecurityEvent) error {
	<-b.release
	return b.Repository.Append(ctx, e)
}

type blockingStore struct {
	*repomanager.InMemoryRepositoryManager
	release chan struct{}
}

func (b *blockingStore) SecurityLog(db dbx.DBTX) securitylog.Repository {
	return blockingLog{Repository: b.InMemoryRepositoryManager.SecurityLog(db), release: b.release}
}

func TestAuditLog_DropsWhenFull(t *testing.T) {
	ctx := context.Background()
	store := &blockingStore{InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager(), release: make(chan struct{})}
	clk := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	a := NewAuditLog(store, logging.Nop{}, clk.Now, 1)

	start := time.Now()
	for i := 0; i < 10; i++ {
		a.Append(ctx, someUser, models.EventLoginFailure, phone, nil)
	}
	assert.Less(t, time.Since(start), time.Second, "Append must not block")

	dropped := a.Dropped()
	assert.GreaterOrEqual(t, dropped, uint64(8))

	close(store.release)
	a.Close()

	list, err := a.Query(ctx, someUser, models.SecurityEventFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 10-int(dropped))
}

type countingLog struct {
	securitylog.Repository
	n *atomic.Int64
}

func (c countingLog) Append(ctx context.Context, e *models.SecurityEvent) error {
	c.n.Add(1)
	return c.Repository.Append(ctx, e)
}

type countingStore struct {
	*repomanager.InMemoryRepositoryManager
	n atomic.Int64
}

func (c *countingStore) SecurityLog(db dbx.DBTX) securitylog.Repository {
	return countingLog{Repository: c.InMemoryRepositoryManager.SecurityLog(db), n: &c.n}
}

func TestAuditLog_CloseRacingAppend(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		store := &countingStore{InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager()}
		a := NewAuditLog(store, logging.Nop{}, time.Now, 4096)

		var (
			accepted atomic.Int64
			wg       sync.WaitGroup
			start    = make(chan struct{})
		)
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < 100; i++ {
					if a.submit(ctx, models.SecurityEvent{ID: uuid.NewString(), UserID: someUser, EventType: models.EventLogout}) {
						accepted.Add(1)
					}
				}
			}()
		}
		close(start)
		a.Close()
		wg.Wait()

		assert.Equal(t, accepted.Load(), store.n.Load(), "round %d", round)
		assert.Zero(t, a.Dropped())
	}
}

func TestAuditLog_SkipsAnonymous(t *testing.T) {
	ctx := context.Background()
	m := repomanager.NewInMemoryRepositoryManager()
	a := NewAuditLog(m, logging.Nop{}, time.Now, 0)

	a.Append(ctx, "", models.EventLoginFailure, phone, nil)

	list, err := m.SecurityLog(nil).List(ctx, "", models.SecurityEventFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := h.account(t, "123456", "")

	c := h.login(t, id, "123456", phone)
	_, _ = h.orch.Verify(ctx, id, []byte("111111"), phone)
	require.NoError(t, h.orch.Logout(ctx, c))

	h.clock.Advance(13 * time.Hour)
	res, err := Purge(ctx, h.repo, h.clock.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Sessions)
	assert.EqualValues(t, 2, res.Attempts)
}
