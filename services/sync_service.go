package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"spark_server/models"
)

// MediaRefreshThreshold is how stale a cursor may be before match/chat
// records get force-refreshed. Signed media URLs expire on their own
// clock, so a long-idle client needs fresh ones even when no field
// changed.
const MediaRefreshThreshold = 20 * time.Hour

// The fetcher interfaces exist so the pipeline can be exercised without
// DynamoDB; the concrete services above are the only production
// implementations.

type PhotoUpdateDetector interface {
	DetectPhotoUpdates(ctx context.Context, userID string, sinceDate time.Time) map[string]bool
}

type MatchChangeFetcher interface {
	FetchMatchChanges(ctx context.Context, userID string, sinceDate *time.Time, forceUpdates bool, photoUpdates map[string]bool, localMatchIDs []string) (models.MatchChanges, error)
}

type ChatChangeFetcher interface {
	FetchChatChanges(ctx context.Context, userID string, sinceDate *time.Time, forceUpdates bool, photoUpdates map[string]bool, localChatIDs []string, encryptionKey []byte) (models.ChatChanges, error)
}

type MessageChangeFetcher interface {
	FetchMessageChanges(ctx context.Context, userID string, sinceDate *time.Time, forceUpdates bool, encryptionKey []byte) (models.MessageChanges, error)
}

type EncryptionKeyProvider interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SyncService runs one pull of the incremental sync protocol: photo
// detector, then matches → chats → messages (chats and messages depend
// on ids derived upstream), then the media-refresh merge. The request is
// read-only; re-running with the same cursor is idempotent.
type SyncService struct {
	Photos   PhotoUpdateDetector
	Matches  MatchChangeFetcher
	Chats    ChatChangeFetcher
	Messages MessageChangeFetcher
	Keys     EncryptionKeyProvider
}

func NewSyncService(photos *PhotoService, matches *MatchSyncService, chats *ChatSyncService, messages *MessageSyncService, keys *KeyService) *SyncService {
	return &SyncService{
		Photos:   photos,
		Matches:  matches,
		Chats:    chats,
		Messages: messages,
		Keys:     keys,
	}
}

// Pull computes the full change-set for one sync request.
func (s *SyncService) Pull(ctx context.Context, userID string, req models.SyncRequest) (*models.SyncResponse, error) {
	var sinceDate *time.Time
	if req.LastPulledAt != nil {
		t := time.UnixMilli(*req.LastPulledAt).UTC()
		sinceDate = &t
	}

	log.Printf("🔄 Sync pull for %s (cursor=%v, force=%v)", userID, req.LastPulledAt, req.ForceUpdates)

	encryptionKey, err := s.Keys.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch encryption key: %w", err)
	}

	// A forced or first sync re-fetches everything anyway; the detector
	// only matters for incremental pulls.
	photoUpdates := map[string]bool{}
	if sinceDate != nil && !req.ForceUpdates {
		photoUpdates = s.Photos.DetectPhotoUpdates(ctx, userID, *sinceDate)
	}

	matches, err := s.Matches.FetchMatchChanges(ctx, userID, sinceDate, req.ForceUpdates, photoUpdates, req.LocalMatchIDs)
	if err != nil {
		return nil, err
	}

	chats, err := s.Chats.FetchChatChanges(ctx, userID, sinceDate, req.ForceUpdates, photoUpdates, req.LocalChatIDs, encryptionKey)
	if err != nil {
		return nil, err
	}

	messages, err := s.Messages.FetchMessageChanges(ctx, userID, sinceDate, req.ForceUpdates, encryptionKey)
	if err != nil {
		return nil, err
	}

	if s.needsMediaRefresh(sinceDate, req.ForceUpdates) {
		log.Printf("🖼️ Cursor older than %v; running media refresh for %s", MediaRefreshThreshold, userID)
		if err := s.mergeMediaRefresh(ctx, userID, encryptionKey, &matches, &chats); err != nil {
			return nil, err
		}
	}

	return &models.SyncResponse{
		Changes: models.SyncChanges{
			Matches:  matches,
			Chats:    chats,
			Messages: messages,
		},
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// needsMediaRefresh is true for incremental pulls whose cursor is older
// than the signed-URL staleness threshold. Forced and first syncs
// already re-fetch everything.
func (s *SyncService) needsMediaRefresh(sinceDate *time.Time, forceUpdates bool) bool {
	if sinceDate == nil || forceUpdates {
		return false
	}
	return time.Since(*sinceDate) > MediaRefreshThreshold
}

// mergeMediaRefresh re-fetches all current matches and chats with forced
// classification and folds the results into the updated arrays. Records
// already classified as created keep that classification.
func (s *SyncService) mergeMediaRefresh(ctx context.Context, userID string, encryptionKey []byte, matches *models.MatchChanges, chats *models.ChatChanges) error {
	refreshedMatches, err := s.Matches.FetchMatchChanges(ctx, userID, nil, true, nil, nil)
	if err != nil {
		return fmt.Errorf("media refresh: %w", err)
	}
	refreshedChats, err := s.Chats.FetchChatChanges(ctx, userID, nil, true, nil, nil, encryptionKey)
	if err != nil {
		return fmt.Errorf("media refresh: %w", err)
	}

	matches.Updated = mergeUpdatedMatches(matches.Created, matches.Updated, refreshedMatches.Updated)
	chats.Updated = mergeUpdatedChats(chats.Created, chats.Updated, refreshedChats.Updated)
	return nil
}

func mergeUpdatedMatches(created, updated, refreshed []models.SyncMatch) []models.SyncMatch {
	keep := map[string]bool{}
	for _, record := range created {
		keep[record.ID] = true
	}

	merged := make([]models.SyncMatch, 0, len(updated)+len(refreshed))
	seen := map[string]bool{}
	// Refreshed records win: their media URLs are the freshly signed ones.
	for _, record := range refreshed {
		if keep[record.ID] {
			continue
		}
		merged = append(merged, record)
		seen[record.ID] = true
	}
	for _, record := range updated {
		if keep[record.ID] || seen[record.ID] {
			continue
		}
		merged = append(merged, record)
	}
	return merged
}

func mergeUpdatedChats(created, updated, refreshed []models.SyncChat) []models.SyncChat {
	keep := map[string]bool{}
	for _, record := range created {
		keep[record.ID] = true
	}

	merged := make([]models.SyncChat, 0, len(updated)+len(refreshed))
	seen := map[string]bool{}
	for _, record := range refreshed {
		if keep[record.ID] {
			continue
		}
		merged = append(merged, record)
		seen[record.ID] = true
	}
	for _, record := range updated {
		if keep[record.ID] || seen[record.ID] {
			continue
		}
		merged = append(merged, record)
	}
	return merged
}
