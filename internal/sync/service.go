package sync

import (
	"context"
	"time"

	"github.com/fixline/bodyshop/internal/changelog"
	"github.com/fixline/bodyshop/internal/db"
	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
)

// Broadcaster receives sync activity events for operator dashboards.
// Implementations must not block; the central websocket hub buffers.
type Broadcaster interface {
	SyncUploaded(identity models.NodeIdentity, processed, ignored int)
	SyncDownloaded(identity models.NodeIdentity, records int, cursor int64)
}

// Service is the central-side sync engine behind the upload and
// download endpoints.
type Service struct {
	repo   *db.Repository
	writer *changelog.Writer

	pageSizeDefault int
	pageSizeMax     int

	broadcaster Broadcaster

	// now is the server clock used for cursors; injectable for tests.
	now func() time.Time
}

// NewService creates a Service with the given page size bounds.
func NewService(repo *db.Repository, writer *changelog.Writer, pageSizeDefault, pageSizeMax int) *Service {
	if writer == nil {
		writer = changelog.NewWriter()
	}
	return &Service{
		repo:            repo,
		writer:          writer,
		pageSizeDefault: pageSizeDefault,
		pageSizeMax:     pageSizeMax,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SetBroadcaster attaches an event sink. May be left unset.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// SetClock overrides the server clock. Exposed for tests that need a
// deterministic cursor.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Upload applies a store's change batch. Items are applied
// independently: failure of one item never aborts the batch. The
// response carries counts only; per-item errors are visible in logs.
// The whole operation tolerates at-least-once delivery because apply
// is an upsert and delete is idempotent.
func (s *Service) Upload(ctx context.Context, identity models.NodeIdentity, origin string, batch models.SyncBatch) (models.SyncBatchResult, error) {
	var result models.SyncBatchResult

	scope := changelog.Origin{StoreID: identity.StoreID, StoreType: identity.StoreType}

	for _, item := range batch.Changes {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if !models.IsReplicatedTable(item.TableName) {
			// Forward-compatible with stores running older or newer
			// schemas: foreign tables are counted, not errored.
			result.IgnoredCount++
			logging.Warn("Ignoring change for unknown table",
				map[string]interface{}{
					"table":    item.TableName,
					"recordId": item.RecordID,
					"storeId":  identity.StoreID,
				})
			continue
		}

		action, err := models.ParseSyncAction(item.Action)
		if err != nil {
			result.IgnoredCount++
			logging.Warn("Ignoring change with unknown action",
				map[string]interface{}{
					"action":   item.Action,
					"recordId": item.RecordID,
					"storeId":  identity.StoreID,
				})
			continue
		}

		if err := s.applyItem(item, action, scope); err != nil {
			result.IgnoredCount++
			logging.Warn("Ignoring change that failed to apply",
				map[string]interface{}{
					"table":    item.TableName,
					"recordId": item.RecordID,
					"storeId":  identity.StoreID,
					"reason":   err.Error(),
				})
			continue
		}
		result.ProcessedCount++
	}

	// An empty batch still proves liveness.
	if err := s.repo.RecordUpload(identity, origin, s.now().Unix()); err != nil {
		return result, err
	}

	if s.broadcaster != nil {
		s.broadcaster.SyncUploaded(identity, result.ProcessedCount, result.IgnoredCount)
	}
	return result, nil
}

// applyItem applies one change and mirrors it into central's own
// change log in the same transaction. The mirror is pre-marked synced:
// central is the terminus of the stream, not another hop.
func (s *Service) applyItem(item models.ChangeItem, action models.SyncAction, scope changelog.Origin) error {
	tx, err := s.repo.DB().Begin()
	if err != nil {
		return err
	}

	switch action {
	case models.ActionInsert, models.ActionUpdate:
		err = s.repo.ApplyUpsertTx(tx, item.TableName, item.RecordID, item.Payload, scope)
	case models.ActionDelete:
		err = s.repo.ApplyDeleteTx(tx, item.TableName, item.RecordID, scope)
	}
	if err != nil {
		tx.Rollback()
		return err
	}

	if err := s.writer.CaptureSynced(tx, item.TableName, item.RecordID, action, item.Payload, scope); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Download computes the store-scoped changes the caller has not seen.
// since is the store's last cursor; zero means from the beginning.
// The returned cursor comes from the server's clock at this call, not
// the maximum row timestamp in the page, so rows committed while the
// request was in flight are re-delivered rather than skipped.
// Re-delivery is safe: the store applies by upsert.
func (s *Service) Download(ctx context.Context, identity models.NodeIdentity, origin string, since int64, pageSize int) (*models.SyncDiffResult, error) {
	if pageSize <= 0 {
		pageSize = s.pageSizeDefault
	}
	if pageSize > s.pageSizeMax {
		// Silently clamped; runaway page sizes must not reach the
		// database.
		pageSize = s.pageSizeMax
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// One second behind the clock: a row stamped in the current second
	// but committed after the diff query ran would sit exactly on a
	// clock-now cursor and be skipped by the strict comparison. Holding
	// the cursor back re-delivers that second instead.
	cursor := s.now().Unix() - 1

	records, err := s.repo.ChangedRecords(identity.StoreID, identity.StoreType, since, pageSize)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RecordDownload(identity, origin, cursor); err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		s.broadcaster.SyncDownloaded(identity, len(records), cursor)
	}

	return &models.SyncDiffResult{
		StoreID:      identity.StoreID,
		StoreType:    identity.StoreType,
		ServerRole:   identity.ServerRole,
		LastSyncTime: cursor,
		Records:      records,
	}, nil
}
