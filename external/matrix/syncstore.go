package matrix

import (
	"context"

	"github.com/UKPLab/aacl2022-TexPrax/internal/repository"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

// syncStore keeps the sync token and filter id in the repository so a
// restart resumes where the last sync stopped instead of replaying timelines.
type syncStore struct {
	state repository.SyncStateRepository
}

var _ mautrix.SyncStore = (*syncStore)(nil)

func nextBatchKey(userID id.UserID) string {
	return "matrix:" + userID.String() + ":next_batch"
}

func filterIDKey(userID id.UserID) string {
	return "matrix:" + userID.String() + ":filter_id"
}

func (s *syncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.state.SaveSyncState(ctx, filterIDKey(userID), filterID)
}

func (s *syncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.state.GetSyncState(ctx, filterIDKey(userID))
}

func (s *syncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.state.SaveSyncState(ctx, nextBatchKey(userID), nextBatchToken)
}

func (s *syncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.state.GetSyncState(ctx, nextBatchKey(userID))
}
