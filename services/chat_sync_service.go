package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"spark_server/models"
	"spark_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"
)

// Shown instead of the preview when a chat's last message cannot be
// decrypted. A bad preview must never fail the batch.
const lastMessagePlaceholder = "Message unavailable"

// Row transforms are I/O bound (decrypt, presign); they fan out inside a
// batch with this limit.
const chatTransformConcurrency = 8

type ChatSyncService struct {
	Dynamo ChangeQuerier
	S3     *S3Service
}

// FetchChatChanges returns the created/updated/deleted sets for the
// user's chats, previews decrypted and counterpart photos signed.
func (s *ChatSyncService) FetchChatChanges(
	ctx context.Context,
	userID string,
	sinceDate *time.Time,
	forceUpdates bool,
	photoUpdates map[string]bool,
	localChatIDs []string,
	encryptionKey []byte,
) (models.ChatChanges, error) {
	changes := models.NewChatChanges()

	timeFilter := sinceDate
	if forceUpdates {
		timeFilter = nil
	}

	rows, err := s.listChats(ctx, userID, timeFilter)
	if err != nil {
		return changes, fmt.Errorf("failed to list chats for %s: %w", userID, err)
	}

	// Chats whose only change is a counterpart photo sit outside the time
	// window; union them in from an unfiltered listing.
	if timeFilter != nil && len(photoUpdates) > 0 {
		allRows, err := s.listChats(ctx, userID, nil)
		if err != nil {
			return changes, fmt.Errorf("failed to list photo-update chats for %s: %w", userID, err)
		}
		seen := map[string]bool{}
		for _, row := range rows {
			seen[row.ChatID] = true
		}
		for _, row := range allRows {
			if !seen[row.ChatID] && photoUpdates[row.Counterpart(userID)] {
				rows = append(rows, row)
			}
		}
	}

	records, err := s.transformChats(ctx, userID, rows, encryptionKey)
	if err != nil {
		return changes, err
	}

	changes = classifyChatRows(rows, records, userID, sinceDate, forceUpdates, photoUpdates)

	deleted, err := s.deletedChatIDs(ctx, userID, sinceDate, forceUpdates, localChatIDs)
	if err != nil {
		return changes, fmt.Errorf("failed to compute chat deletions for %s: %w", userID, err)
	}
	changes.Deleted = appendUnique(changes.Deleted, deleted)

	log.Printf("💬 Chat sync for %s: %d created, %d updated, %d deleted",
		userID, len(changes.Created), len(changes.Updated), len(changes.Deleted))
	return changes, nil
}

// listChats is the chat listing aggregation: both participant GSIs,
// filtered by updatedAt when a cursor is in play. updatedAt moves on
// every message send and read-state change.
func (s *ChatSyncService) listChats(ctx context.Context, userID string, sinceDate *time.Time) ([]models.Chat, error) {
	values := map[string]types.AttributeValue{
		":userId": &types.AttributeValueMemberS{Value: userID},
	}
	filter := ""
	if sinceDate != nil {
		values[":since"] = &types.AttributeValueMemberS{Value: sinceDate.UTC().Format(time.RFC3339)}
		filter = "updatedAt > :since"
	}

	var chats []models.Chat
	for _, index := range []struct {
		name string
		attr string
	}{
		{models.ChatUserAIndex, "userA"},
		{models.ChatUserBIndex, "userB"},
	} {
		items, err := s.Dynamo.QueryItemsWithIndex(
			ctx,
			models.ChatsTable,
			index.name,
			index.attr+" = :userId",
			values,
			nil,
			filter,
			1000,
		)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			var chat models.Chat
			if err := attributevalue.UnmarshalMap(item, &chat); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
			}
			chats = append(chats, chat)
		}
	}
	return chats, nil
}

// transformChats turns stored rows into wire records. Counterpart photos
// are resolved once for the whole batch; decrypt and presign run
// concurrently per row. Per-row failures degrade (placeholder preview,
// missing photo) and never abort the batch.
func (s *ChatSyncService) transformChats(ctx context.Context, userID string, rows []models.Chat, encryptionKey []byte) ([]models.SyncChat, error) {
	photoKeys := s.resolveCounterpartPhotos(ctx, counterpartsOf(rows, userID))

	records := make([]models.SyncChat, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(chatTransformConcurrency)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			preview := decryptPreview(encryptionKey, row)
			counterpart := row.Counterpart(userID)
			photoURL := ""
			if key, ok := photoKeys[counterpart]; ok {
				signed, err := s.S3.SignPhotoURL(gctx, key)
				if err != nil {
					log.Printf("⚠️ Failed to sign photo for user %s: %v", counterpart, err)
				} else {
					photoURL = signed
				}
			}

			syncedAt := utils.MaxEpochMs(row.CreatedAt, row.UpdatedAt, row.LastMessageAt)
			if syncedAt == 0 {
				syncedAt = time.Now().UnixMilli()
			}

			records[i] = models.SyncChat{
				ID:               row.ChatID,
				MatchID:          row.MatchID,
				CreatedAt:        utils.ToEpochMs(row.CreatedAt),
				LastMessage:      preview,
				LastMessageAt:    utils.ToEpochMs(row.LastMessageAt),
				CounterpartID:    counterpart,
				CounterpartName:  row.CounterpartName(userID),
				CounterpartPhoto: photoURL,
				UnreadCount:      row.UnreadFor(userID),
				PlaceID:          row.PlaceID,
				PlaceName:        row.PlaceName,
				SyncedAt:         syncedAt,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// decryptPreview recovers the last-message preview. A chat with an
// undecryptable preview still syncs, with a placeholder in its place.
func decryptPreview(encryptionKey []byte, row models.Chat) string {
	if row.LastMessage == "" {
		return ""
	}
	decrypted, err := DecryptMessage(encryptionKey, models.EncryptedPayload{
		Ciphertext: row.LastMessage,
		IV:         row.LastMessageIV,
		Tag:        row.LastMessageTag,
	})
	if err != nil {
		log.Printf("⚠️ Failed to decrypt preview for chat %s: %v", row.ChatID, err)
		return lastMessagePlaceholder
	}
	return decrypted
}

// classifyChatRows sorts transformed records into created/updated.
// records[i] corresponds to rows[i].
func classifyChatRows(
	rows []models.Chat,
	records []models.SyncChat,
	userID string,
	sinceDate *time.Time,
	forceUpdates bool,
	photoUpdates map[string]bool,
) models.ChatChanges {
	changes := models.NewChatChanges()
	for i, row := range rows {
		switch {
		case forceUpdates || photoUpdates[row.Counterpart(userID)]:
			changes.Updated = append(changes.Updated, records[i])
		case sinceDate == nil || utils.AfterCursor(row.CreatedAt, *sinceDate):
			changes.Created = append(changes.Created, records[i])
		default:
			changes.Updated = append(changes.Updated, records[i])
		}
	}
	return changes
}

// resolveCounterpartPhotos fetches each counterpart's primary photo key.
// Failures leave the photo out; they never abort the batch.
func (s *ChatSyncService) resolveCounterpartPhotos(ctx context.Context, counterparts []string) map[string]string {
	keys := map[string]string{}
	for _, counterpart := range counterparts {
		items, err := s.Dynamo.QueryItemsWithIndex(
			ctx,
			models.UserPhotosTable,
			models.PhotoUserIndex,
			"userId = :userId",
			map[string]types.AttributeValue{
				":userId": &types.AttributeValueMemberS{Value: counterpart},
			},
			nil,
			"",
			25,
		)
		if err != nil {
			log.Printf("⚠️ Failed to fetch photos for user %s: %v", counterpart, err)
			continue
		}

		best := models.UserPhoto{Position: -1}
		for _, item := range items {
			var photo models.UserPhoto
			if err := attributevalue.UnmarshalMap(item, &photo); err != nil {
				continue
			}
			if best.Position == -1 || photo.Position < best.Position {
				best = photo
			}
		}
		if best.S3Key != "" {
			keys[counterpart] = best.S3Key
		}
	}
	return keys
}

// deletedChatIDs finds chats whose owning match is unmatched or gone. A
// client without a cursor holds nothing, so there is nothing to delete.
func (s *ChatSyncService) deletedChatIDs(ctx context.Context, userID string, sinceDate *time.Time, forceUpdates bool, localChatIDs []string) ([]string, error) {
	if sinceDate == nil {
		return nil, nil
	}

	chats, err := s.listChats(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	var deleted []string

	// Local ids the server does not know anymore are tombstones outright.
	serverChats := map[string]bool{}
	for _, chat := range chats {
		serverChats[chat.ChatID] = true
	}
	for _, id := range localChatIDs {
		if !serverChats[id] {
			deleted = append(deleted, id)
		}
	}

	if len(chats) == 0 {
		return deleted, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(chats))
	for _, chat := range chats {
		keys = append(keys, map[string]types.AttributeValue{
			"matchId": &types.AttributeValueMemberS{Value: chat.MatchID},
		})
	}
	items, err := s.Dynamo.BatchGetItems(ctx, models.MatchesTable, keys)
	if err != nil {
		return nil, err
	}

	matches := map[string]models.Match{}
	for _, item := range items {
		var match models.Match
		if err := attributevalue.UnmarshalMap(item, &match); err != nil {
			continue
		}
		matches[match.MatchID] = match
	}

	for _, chat := range chats {
		match, exists := matches[chat.MatchID]
		switch {
		case !exists:
			deleted = append(deleted, chat.ChatID)
		case match.Status == models.MatchStatusUnmatched && (forceUpdates || utils.AfterCursor(match.UnmatchedAt, *sinceDate)):
			deleted = append(deleted, chat.ChatID)
		}
	}

	return deleted, nil
}

func counterpartsOf(chats []models.Chat, userID string) []string {
	seen := map[string]bool{}
	var counterparts []string
	for _, chat := range chats {
		counterpart := chat.Counterpart(userID)
		if counterpart == "" || seen[counterpart] {
			continue
		}
		seen[counterpart] = true
		counterparts = append(counterparts, counterpart)
	}
	return counterparts
}
