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

// MessageSyncLimit caps a single pull at 1000 message rows to bound
// request latency; clients re-sync to drain a larger backlog.
const MessageSyncLimit = 1000

type MessageSyncService struct {
	Dynamo ChangeQuerier
}

// FetchMessageChanges returns the created/updated sets for messages in
// the user's chats. Messages are never tombstoned by sync, and a row
// that fails to decrypt is dropped rather than corrupted.
func (s *MessageSyncService) FetchMessageChanges(
	ctx context.Context,
	userID string,
	sinceDate *time.Time,
	forceUpdates bool,
	encryptionKey []byte,
) (models.MessageChanges, error) {
	changes := models.NewMessageChanges()

	chatIDs, err := s.userChatIDs(ctx, userID)
	if err != nil {
		return changes, fmt.Errorf("failed to resolve chats for %s: %w", userID, err)
	}
	if len(chatIDs) == 0 {
		return changes, nil
	}

	rows, err := s.fetchMessages(ctx, chatIDs, sinceDate, forceUpdates)
	if err != nil {
		return changes, fmt.Errorf("failed to fetch messages for %s: %w", userID, err)
	}

	records := decryptMessages(ctx, rows, encryptionKey)
	changes = classifyMessages(rows, records, sinceDate, forceUpdates)

	log.Printf("✉️ Message sync for %s: %d created, %d updated", userID, len(changes.Created), len(changes.Updated))
	return changes, nil
}

// classifyMessages sorts decrypted records into created/updated.
// records[i] corresponds to rows[i]; nil records were dropped on decrypt
// failure.
func classifyMessages(rows []models.Message, records []*models.SyncMessage, sinceDate *time.Time, forceUpdates bool) models.MessageChanges {
	changes := models.NewMessageChanges()
	for i, row := range rows {
		if records[i] == nil {
			continue
		}
		switch {
		case forceUpdates:
			changes.Updated = append(changes.Updated, *records[i])
		case sinceDate == nil || utils.AfterCursor(row.CreatedAt, *sinceDate):
			changes.Created = append(changes.Created, *records[i])
		default:
			// Only readAt can have moved; content is immutable.
			changes.Updated = append(changes.Updated, *records[i])
		}
	}
	return changes
}

// userChatIDs resolves every chat the user participates in, independent
// of what the chat change-set emitted this round.
func (s *MessageSyncService) userChatIDs(ctx context.Context, userID string) ([]string, error) {
	var chatIDs []string
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
			map[string]types.AttributeValue{
				":userId": &types.AttributeValueMemberS{Value: userID},
			},
			nil,
			"",
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
			chatIDs = append(chatIDs, chat.ChatID)
		}
	}
	return chatIDs, nil
}

func (s *MessageSyncService) fetchMessages(ctx context.Context, chatIDs []string, sinceDate *time.Time, forceUpdates bool) ([]models.Message, error) {
	filter := ""
	values := map[string]types.AttributeValue{}
	if sinceDate != nil && !forceUpdates {
		values[":since"] = &types.AttributeValueMemberS{Value: sinceDate.UTC().Format(time.RFC3339)}
		filter = "createdAt > :since OR readAt > :since"
	}

	var rows []models.Message
	for _, chatID := range chatIDs {
		chatValues := map[string]types.AttributeValue{
			":chatId": &types.AttributeValueMemberS{Value: chatID},
		}
		for k, v := range values {
			chatValues[k] = v
		}

		items, err := s.Dynamo.QueryItemsWithFilters(
			ctx,
			models.MessagesTable,
			"chatId = :chatId",
			chatValues,
			nil,
			filter,
			int32(MessageSyncLimit-len(rows)),
		)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			var message models.Message
			if err := attributevalue.UnmarshalMap(item, &message); err != nil {
				return nil, fmt.Errorf("failed to unmarshal message: %w", err)
			}
			rows = append(rows, message)
			if len(rows) >= MessageSyncLimit {
				log.Printf("⚠️ Message sync hit the %d row cap; client must re-sync to drain", MessageSyncLimit)
				return rows, nil
			}
		}
	}
	return rows, nil
}

// decryptMessages fans the per-row decrypts out over the batch. A failed
// row yields nil; there is no safe placeholder for a missing message, so
// silently omitting beats corrupting history.
func decryptMessages(ctx context.Context, rows []models.Message, encryptionKey []byte) []*models.SyncMessage {
	records := make([]*models.SyncMessage, len(rows))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(chatTransformConcurrency)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			content, err := DecryptMessage(encryptionKey, models.EncryptedPayload{
				Ciphertext: row.Ciphertext,
				IV:         row.IV,
				Tag:        row.Tag,
			})
			if err != nil {
				log.Printf("⚠️ Dropping message %s: decrypt failed: %v", row.MessageID, err)
				return nil
			}

			syncedAt := utils.MaxEpochMs(row.CreatedAt, row.ReadAt)
			records[i] = &models.SyncMessage{
				ID:        row.MessageID,
				ChatID:    row.ChatID,
				SenderID:  row.SenderID,
				Content:   content,
				CreatedAt: utils.ToEpochMs(row.CreatedAt),
				ReadAt:    utils.ToEpochMs(row.ReadAt),
				SyncedAt:  syncedAt,
			}
			return nil
		})
	}

	_ = g.Wait() // goroutines never return errors; failures drop the row
	return records
}
