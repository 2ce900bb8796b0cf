package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"spark_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	result map[string]bool
	calls  int
}

func (s *stubDetector) DetectPhotoUpdates(ctx context.Context, userID string, sinceDate time.Time) map[string]bool {
	s.calls++
	if s.result == nil {
		return map[string]bool{}
	}
	return s.result
}

type stubMatchFetcher struct {
	changes models.MatchChanges
	forced  models.MatchChanges
	err     error
	calls   []bool // force flag per call
}

func (s *stubMatchFetcher) FetchMatchChanges(ctx context.Context, userID string, sinceDate *time.Time, forceUpdates bool, photoUpdates map[string]bool, localMatchIDs []string) (models.MatchChanges, error) {
	s.calls = append(s.calls, forceUpdates)
	if s.err != nil {
		return models.NewMatchChanges(), s.err
	}
	if forceUpdates {
		return s.forced, nil
	}
	return s.changes, nil
}

type stubChatFetcher struct {
	changes models.ChatChanges
	forced  models.ChatChanges
	err     error
	calls   []bool
	keys    [][]byte
}

func (s *stubChatFetcher) FetchChatChanges(ctx context.Context, userID string, sinceDate *time.Time, forceUpdates bool, photoUpdates map[string]bool, localChatIDs []string, encryptionKey []byte) (models.ChatChanges, error) {
	s.calls = append(s.calls, forceUpdates)
	s.keys = append(s.keys, encryptionKey)
	if s.err != nil {
		return models.NewChatChanges(), s.err
	}
	if forceUpdates {
		return s.forced, nil
	}
	return s.changes, nil
}

type stubMessageFetcher struct {
	changes models.MessageChanges
	err     error
	calls   int
}

func (s *stubMessageFetcher) FetchMessageChanges(ctx context.Context, userID string, sinceDate *time.Time, forceUpdates bool, encryptionKey []byte) (models.MessageChanges, error) {
	s.calls++
	if s.err != nil {
		return models.NewMessageChanges(), s.err
	}
	return s.changes, nil
}

func newTestSyncService(detector *stubDetector, matches *stubMatchFetcher, chats *stubChatFetcher, messages *stubMessageFetcher) *SyncService {
	return &SyncService{
		Photos:   detector,
		Matches:  matches,
		Chats:    chats,
		Messages: messages,
		Keys:     &KeyService{key: testKey()},
	}
}

func emptyStubs() (*stubDetector, *stubMatchFetcher, *stubChatFetcher, *stubMessageFetcher) {
	return &stubDetector{},
		&stubMatchFetcher{changes: models.NewMatchChanges(), forced: models.NewMatchChanges()},
		&stubChatFetcher{changes: models.NewChatChanges(), forced: models.NewChatChanges()},
		&stubMessageFetcher{changes: models.NewMessageChanges()}
}

func TestPull_FirstSync(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	matches.changes.Created = []models.SyncMatch{{ID: "m1", SyncedAt: time.Now().UnixMilli()}}
	messages.changes.Created = []models.SyncMessage{{ID: "msg1", SyncedAt: time.Now().UnixMilli()}}
	svc := newTestSyncService(detector, matches, chats, messages)

	resp, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: nil})
	require.NoError(t, err)

	assert.Equal(t, 0, detector.calls, "detector is skipped without a cursor")
	require.Len(t, resp.Changes.Matches.Created, 1)
	require.Len(t, resp.Changes.Messages.Created, 1)

	// Monotonic cursor: the response timestamp bounds every syncedAt
	for _, record := range resp.Changes.Matches.Created {
		assert.GreaterOrEqual(t, resp.Timestamp, record.SyncedAt)
	}
	for _, record := range resp.Changes.Messages.Created {
		assert.GreaterOrEqual(t, resp.Timestamp, record.SyncedAt)
	}
}

func TestPull_DetectorRunsOnIncrementalSync(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	svc := newTestSyncService(detector, matches, chats, messages)

	cursor := time.Now().Add(-time.Hour).UnixMilli()
	_, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: &cursor})
	require.NoError(t, err)

	assert.Equal(t, 1, detector.calls)
}

func TestPull_DetectorSkippedWhenForced(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	svc := newTestSyncService(detector, matches, chats, messages)

	cursor := time.Now().Add(-time.Hour).UnixMilli()
	_, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: &cursor, ForceUpdates: true})
	require.NoError(t, err)

	assert.Equal(t, 0, detector.calls)
}

func TestPull_KeyIsFetchedOnceAndShared(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	svc := newTestSyncService(detector, matches, chats, messages)

	_, err := svc.Pull(context.Background(), "me", models.SyncRequest{})
	require.NoError(t, err)

	require.Len(t, chats.keys, 1)
	assert.Equal(t, testKey(), chats.keys[0])
}

func TestPull_FetcherErrorIsFatal(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	matches.err = errors.New("dynamo unavailable")
	svc := newTestSyncService(detector, matches, chats, messages)

	_, err := svc.Pull(context.Background(), "me", models.SyncRequest{})
	assert.Error(t, err)
}

func TestPull_KeyErrorIsFatal(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	svc := newTestSyncService(detector, matches, chats, messages)
	svc.Keys = &KeyService{}

	_, err := svc.Pull(context.Background(), "me", models.SyncRequest{})
	assert.Error(t, err)
}

func TestPull_MediaRefreshMergesUpdated(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()

	// Incremental pass: one created, one updated with a stale URL
	matches.changes.Created = []models.SyncMatch{{ID: "created"}}
	matches.changes.Updated = []models.SyncMatch{{ID: "stale", PlaceName: "old"}}
	// Forced refresh pass re-returns everything with fresh media
	matches.forced.Updated = []models.SyncMatch{{ID: "created", PlaceName: "fresh"}, {ID: "stale", PlaceName: "fresh"}}

	chats.changes.Updated = []models.SyncChat{{ID: "c1", CounterpartPhoto: "expired-url"}}
	chats.forced.Updated = []models.SyncChat{{ID: "c1", CounterpartPhoto: "fresh-url"}, {ID: "c2", CounterpartPhoto: "fresh-url"}}

	svc := newTestSyncService(detector, matches, chats, messages)

	cursor := time.Now().Add(-MediaRefreshThreshold - time.Hour).UnixMilli()
	resp, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: &cursor})
	require.NoError(t, err)

	// Two match fetches: the incremental one and the forced refresh
	require.Equal(t, []bool{false, true}, matches.calls)

	// A record in created keeps that classification; refreshed records
	// replace their stale updated counterparts
	require.Len(t, resp.Changes.Matches.Created, 1)
	require.Len(t, resp.Changes.Matches.Updated, 1)
	assert.Equal(t, "stale", resp.Changes.Matches.Updated[0].ID)
	assert.Equal(t, "fresh", resp.Changes.Matches.Updated[0].PlaceName)

	require.Len(t, resp.Changes.Chats.Updated, 2)
	assert.Equal(t, "fresh-url", resp.Changes.Chats.Updated[0].CounterpartPhoto)
}

func TestPull_NoMediaRefreshOnFreshCursor(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	svc := newTestSyncService(detector, matches, chats, messages)

	cursor := time.Now().Add(-time.Hour).UnixMilli()
	_, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: &cursor})
	require.NoError(t, err)

	assert.Equal(t, []bool{false}, matches.calls)
	assert.Equal(t, []bool{false}, chats.calls)
}

func TestPull_NoMediaRefreshWhenForced(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	svc := newTestSyncService(detector, matches, chats, messages)

	cursor := time.Now().Add(-MediaRefreshThreshold - time.Hour).UnixMilli()
	_, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: &cursor, ForceUpdates: true})
	require.NoError(t, err)

	assert.Equal(t, []bool{true}, matches.calls, "a forced sync already re-fetches everything")
}

func TestPull_Idempotent(t *testing.T) {
	detector, matches, chats, messages := emptyStubs()
	matches.changes.Created = []models.SyncMatch{{ID: "m1"}}
	chats.changes.Updated = []models.SyncChat{{ID: "c1"}}
	messages.changes.Created = []models.SyncMessage{{ID: "msg1"}}
	svc := newTestSyncService(detector, matches, chats, messages)

	cursor := time.Now().Add(-time.Hour).UnixMilli()
	first, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: &cursor})
	require.NoError(t, err)
	second, err := svc.Pull(context.Background(), "me", models.SyncRequest{LastPulledAt: &cursor})
	require.NoError(t, err)

	assert.Equal(t, first.Changes, second.Changes)
}
