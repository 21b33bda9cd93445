package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/server/repositories/repomanager"
)

// PurgeResult counts the rows removed by Purge.
type PurgeResult struct {
	Sessions int64
	Attempts int64
}

// Purge deletes sessions that ended or expired and login attempts older
// than before. It is meant for an external retention job; no scheduler
// runs in-process. before should be older than the longest rate-limit
// window, or throttling state is lost.
func Purge(ctx context.Context, m repomanager.RepositoryManager, before time.Time) (PurgeResult, error) {
	var res PurgeResult
	var err error

	res.Sessions, err = m.Sessions(m.Conn()).Purge(ctx, before)
	if err != nil {
		return res, fmt.Errorf("purge sessions: %w", err)
	}
	res.Attempts, err = m.Attempts(m.Conn()).Purge(ctx, before)
	if err != nil {
		return res, fmt.Errorf("purge attempts: %w", err)
	}
	return res, nil
}
