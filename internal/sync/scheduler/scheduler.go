package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fixline/bodyshop/internal/changelog"
	"github.com/fixline/bodyshop/internal/db"
	"github.com/fixline/bodyshop/internal/errors"
	"github.com/fixline/bodyshop/internal/identity"
	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
	syncpkg "github.com/fixline/bodyshop/internal/sync"
)

// Config holds scheduler configuration.
type Config struct {
	Interval  time.Duration // how often a tick runs
	BatchSize int           // max change log entries per upload
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:  5 * time.Minute,
		BatchSize: 200,
	}
}

// Scheduler runs the store's sync loop. Ticks run strictly one at a
// time: a new tick is never started while the previous one is
// outstanding, so a store can never have two upload batches in
// flight. The central node never runs a Scheduler.
type Scheduler struct {
	repo     *db.Repository
	client   *syncpkg.Client
	resolver *identity.Resolver

	interval  time.Duration
	batchSize int

	holder tokenHolder

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.RWMutex
	isRunning bool
	lastTick  time.Time
	lastErr   error
}

// New creates a Scheduler.
func New(repo *db.Repository, client *syncpkg.Client, resolver *identity.Resolver, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Scheduler{
		repo:      repo,
		client:    client,
		resolver:  resolver,
		interval:  config.Interval,
		batchSize: config.BatchSize,
		stopCh:    make(chan struct{}),
	}
}

// Start starts the background sync loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("Store sync scheduler started",
		map[string]interface{}{"interval": s.interval.String()})
}

// Stop stops the loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	logging.Info("Store sync scheduler stopped", nil)
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LastTick returns when the last tick completed and its error, if any.
func (s *Scheduler) LastTick() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick, s.lastErr
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			// Tick runs inline: the next ticker fire is not serviced
			// until this tick returns, which is what serializes a
			// store's sync traffic.
			err := s.Tick(ctx)

			s.mu.Lock()
			s.lastTick = time.Now()
			s.lastErr = err
			s.mu.Unlock()

			if err != nil && ctx.Err() == nil {
				logging.Error("Sync tick failed", err, nil)
			}
		}
	}
}

// Tick runs one full sync cycle: identity refresh, origin backfill,
// upload of unsynced entries, then cursor-driven download. Any
// transport failure leaves entries unsynced and the cursor
// unadvanced; the next tick resumes from the same state.
func (s *Scheduler) Tick(ctx context.Context) error {
	machineKey := s.resolver.MachineKey()

	// One re-authentication attempt per tick. A second consecutive
	// 401 is a hard failure until the next scheduled tick.
	reauthed := false

	token, ident, ok := s.holder.get()
	if !ok {
		var err error
		token, ident, err = s.authenticate(ctx, machineKey)
		if err != nil {
			return err
		}
	}

	origin := changelog.Origin{StoreID: ident.StoreID, StoreType: ident.StoreType}
	s.repo.SetOrigin(origin)
	if n, err := s.repo.BackfillOrigin(origin); err != nil {
		return errors.Wrap(errors.ErrDatabase, "origin backfill failed", err)
	} else if n > 0 {
		logging.Info("Backfilled change log origin",
			map[string]interface{}{"entries": n, "storeId": ident.StoreID})
	}

	if err := s.uploadPending(ctx, &token, &ident, machineKey, &reauthed); err != nil {
		return err
	}

	return s.downloadChanges(ctx, &token, &ident, machineKey, &reauthed)
}

// uploadPending packages unsynced entries into a batch and uploads
// it. Entries are marked synced only after central acknowledged the
// batch; a failure leaves them for the next tick (at-least-once).
func (s *Scheduler) uploadPending(ctx context.Context, token *string, ident *models.NodeIdentity, machineKey string, reauthed *bool) error {
	entries, err := s.repo.UnsyncedEntries(s.batchSize)
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to read unsynced entries", err)
	}

	batch := models.SyncBatch{
		StoreID:    ident.StoreID,
		StoreType:  ident.StoreType,
		ServerRole: ident.ServerRole,
		Changes:    make([]models.ChangeItem, 0, len(entries)),
	}
	seqs := make([]int64, 0, len(entries))
	for _, e := range entries {
		batch.Changes = append(batch.Changes, models.ChangeItem{
			TableName: e.TableName,
			Action:    string(e.Action),
			RecordID:  e.RecordID,
			UpdatedAt: e.UpdatedAt,
			Payload:   e.Payload,
		})
		seqs = append(seqs, e.Seq)
	}

	var result *models.SyncBatchResult
	err = s.withAuthRetry(ctx, token, ident, machineKey, reauthed, func(tok string) error {
		var callErr error
		result, callErr = s.client.Upload(ctx, tok, batch)
		return callErr
	})
	if err != nil {
		return errors.Wrap(errors.ErrSyncUpload, "upload failed", err)
	}

	if err := s.repo.MarkSynced(seqs); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to mark entries synced", err)
	}

	if len(entries) > 0 || result.IgnoredCount > 0 {
		logging.Info("Uploaded change batch",
			map[string]interface{}{
				"entries":   len(entries),
				"processed": result.ProcessedCount,
				"ignored":   result.IgnoredCount,
			})
	}
	return nil
}

// downloadChanges pulls the next page of central-side changes and
// applies them locally by upsert. Central wins: every returned row
// overwrites the local row unconditionally.
func (s *Scheduler) downloadChanges(ctx context.Context, token *string, ident *models.NodeIdentity, machineKey string, reauthed *bool) error {
	cursor, err := s.repo.LocalCursor()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to read local cursor", err)
	}

	var diff *models.SyncDiffResult
	err = s.withAuthRetry(ctx, token, ident, machineKey, reauthed, func(tok string) error {
		var callErr error
		diff, callErr = s.client.Download(ctx, tok, cursor, s.batchSize)
		return callErr
	})
	if err != nil {
		return errors.Wrap(errors.ErrSyncDownload, "download failed", err)
	}

	applied := 0
	for _, rec := range diff.Records {
		if err := s.repo.ApplyUpsert(rec.TableName, rec.RecordID, rec.Payload); err != nil {
			// Apply failures keep the old cursor so the row is
			// re-delivered next tick.
			return errors.Wrap(errors.ErrSyncApply, "failed to apply downloaded row", err)
		}
		applied++
	}

	if err := s.repo.SetLocalCursor(diff.LastSyncTime); err != nil {
		return errors.Wrap(errors.ErrDatabase, "failed to advance cursor", err)
	}

	if applied > 0 {
		logging.Info("Applied downloaded changes",
			map[string]interface{}{"records": applied, "cursor": diff.LastSyncTime})
	}
	return nil
}

// withAuthRetry runs a call with the current token, re-authenticating
// at most once on a credential rejection.
func (s *Scheduler) withAuthRetry(ctx context.Context, token *string, ident *models.NodeIdentity, machineKey string, reauthed *bool, call func(token string) error) error {
	err := call(*token)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errors.ErrSyncAuth) {
		return err
	}

	s.holder.clear()
	if *reauthed {
		return errors.Wrap(errors.ErrSyncAuth, "credential rejected twice in one tick", err)
	}
	*reauthed = true

	freshToken, freshIdent, authErr := s.authenticate(ctx, machineKey)
	if authErr != nil {
		return authErr
	}
	*token = freshToken
	*ident = freshIdent

	return call(*token)
}

// authenticate performs a machine-key login and caches the result.
func (s *Scheduler) authenticate(ctx context.Context, machineKey string) (string, models.NodeIdentity, error) {
	s.holder.beginAuth()

	login, err := s.client.Login(ctx, machineKey)
	if err != nil {
		s.holder.clear()
		return "", models.NodeIdentity{}, errors.Wrap(errors.ErrSyncAuth, "machine key login failed", err)
	}
	if login.ServerRole == models.RoleCentral {
		s.holder.clear()
		return "", models.NodeIdentity{}, errors.New(errors.ErrConfig, "central identity must not run the store scheduler")
	}

	s.holder.set(login)
	token, ident, _ := s.holder.get()

	logging.Info("Authenticated with central",
		map[string]interface{}{
			"storeId":   ident.StoreID,
			"storeType": string(ident.StoreType),
			"role":      string(ident.ServerRole),
		})
	return token, ident, nil
}
