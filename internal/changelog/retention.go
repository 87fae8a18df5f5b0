package changelog

import (
	"context"
	"database/sql"
	"time"

	"github.com/fixline/bodyshop/internal/logging"
)

// Purger removes change log entries that are both synced and older
// than the retention window. It runs outside normal sync transactions
// and never touches unsynced entries, so an interrupted sweep is
// always safe to repeat.
type Purger struct {
	db       *sql.DB
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewPurger creates a Purger with the given retention window and
// sweep interval.
func NewPurger(db *sql.DB, window, interval time.Duration) *Purger {
	return &Purger{
		db:       db,
		window:   window,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PurgeOnce removes eligible entries and returns how many were deleted.
func (p *Purger) PurgeOnce() (int64, error) {
	cutoff := p.now().Add(-p.window).Unix()
	res, err := p.db.Exec("DELETE FROM change_log WHERE synced = 1 AND updated_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Run sweeps periodically until the context is cancelled.
func (p *Purger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := p.PurgeOnce()
			if err != nil {
				logging.Error("Change log retention sweep failed", err, nil)
				continue
			}
			if deleted > 0 {
				logging.Info("Purged synced change log entries",
					map[string]interface{}{"deleted": deleted})
			}
		}
	}
}
