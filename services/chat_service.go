package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"spark_server/models"
	"spark_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

var ErrNotParticipant = errors.New("user is not a participant")
var ErrMatchInactive = errors.New("match is not active")

// Broadcaster is the realtime fan-out surface; the socket.io server
// satisfies it. Broadcast payloads carry ids only, never plaintext.
type Broadcaster interface {
	BroadcastToRoom(namespace string, room string, event string, args ...interface{}) bool
}

// ChatService owns the chat write path: sending encrypts at rest and
// creates the chat on a match's first message; marking read is what the
// sync protocol later surfaces as readAt-only "updated" messages.
type ChatService struct {
	Dynamo ChatStore
	Keys   *KeyService
	Socket Broadcaster
}

// SendMessage encrypts and stores a message, creating the chat (and
// stamping firstMessageAt on the match) when it is the first one. A
// caller that already knows its chat id passes it and skips the match
// lookup; chatID may be empty.
func (s *ChatService) SendMessage(ctx context.Context, senderID, matchID, chatID, content string) (*models.Message, error) {
	if content == "" {
		return nil, errors.New("message content is empty")
	}

	key, err := s.Keys.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch encryption key: %w", err)
	}

	var chat *models.Chat
	if chatID != "" {
		chat, err = s.getChat(ctx, chatID)
		if err != nil {
			return nil, err
		}
		if chat.MatchID != matchID {
			return nil, fmt.Errorf("chat %s does not belong to match %s", chatID, matchID)
		}
	} else {
		chat, err = s.findChatByMatch(ctx, matchID)
		if err != nil {
			return nil, err
		}
	}
	if chat == nil {
		chat, err = s.createChatForMatch(ctx, senderID, matchID)
		if err != nil {
			return nil, err
		}
	}
	if !chat.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	payload, err := EncryptMessage(key, content)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt message: %w", err)
	}

	now := utils.NowRFC3339()
	message := models.Message{
		ChatID:     chat.ChatID,
		MessageID:  uuid.NewString(),
		SenderID:   senderID,
		Ciphertext: payload.Ciphertext,
		IV:         payload.IV,
		Tag:        payload.Tag,
		CreatedAt:  now,
	}

	if err := s.Dynamo.PutItem(ctx, models.MessagesTable, message); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	// The message row is already stored at this point; a preview failure
	// leaves it behind with a stale chat preview until the next send or
	// read rewrites it.
	if err := s.bumpChatPreview(ctx, chat, senderID, payload, now); err != nil {
		return nil, err
	}

	if s.Socket != nil {
		s.Socket.BroadcastToRoom("/", chat.ChatID, "newMessage", map[string]interface{}{
			"chat_id":    chat.ChatID,
			"message_id": message.MessageID,
			"sender_id":  senderID,
			"created_at": utils.ToEpochMs(now),
		})
	}

	log.Printf("📩 Message %s stored in chat %s", message.MessageID, chat.ChatID)
	return &message, nil
}

// MarkMessagesAsRead sets readAt on the counterpart's unread messages in
// the chat and zeroes the caller's unread counter. Returns how many
// messages changed.
func (s *ChatService) MarkMessagesAsRead(ctx context.Context, userID, chatID string) (int, error) {
	chat, err := s.getChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if !chat.HasParticipant(userID) {
		return 0, ErrNotParticipant
	}

	items, err := s.Dynamo.QueryItemsWithFilters(
		ctx,
		models.MessagesTable,
		"chatId = :chatId",
		map[string]types.AttributeValue{
			":chatId": &types.AttributeValueMemberS{Value: chatID},
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
		nil,
		"senderId <> :userId AND attribute_not_exists(readAt)",
		0,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unread messages: %w", err)
	}

	now := utils.NowRFC3339()
	marked := 0
	for _, raw := range items {
		var message models.Message
		if err := attributevalue.UnmarshalMap(raw, &message); err != nil {
			continue
		}

		_, err := s.Dynamo.UpdateItem(
			ctx,
			models.MessagesTable,
			"SET readAt = :now",
			map[string]types.AttributeValue{
				"chatId":    &types.AttributeValueMemberS{Value: chatID},
				"messageId": &types.AttributeValueMemberS{Value: message.MessageID},
			},
			map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberS{Value: now},
			},
			nil,
		)
		if err != nil {
			log.Printf("❌ Failed to mark message %s as read: %v", message.MessageID, err)
			continue
		}
		marked++
	}

	unreadAttr := "unreadB"
	if chat.UserA == userID {
		unreadAttr = "unreadA"
	}
	_, err = s.Dynamo.UpdateItem(
		ctx,
		models.ChatsTable,
		fmt.Sprintf("SET %s = :zero, updatedAt = :now", unreadAttr),
		map[string]types.AttributeValue{
			"chatId": &types.AttributeValueMemberS{Value: chatID},
		},
		map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":now":  &types.AttributeValueMemberS{Value: now},
		},
		nil,
	)
	if err != nil {
		return marked, fmt.Errorf("failed to reset unread count: %w", err)
	}

	log.Printf("✅ Marked %d message(s) as read in chat %s for %s", marked, chatID, userID)
	return marked, nil
}

func (s *ChatService) getChat(ctx context.Context, chatID string) (*models.Chat, error) {
	item, err := s.Dynamo.GetItem(ctx, models.ChatsTable, map[string]types.AttributeValue{
		"chatId": &types.AttributeValueMemberS{Value: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load chat %s: %w", chatID, err)
	}
	var chat models.Chat
	if err := attributevalue.UnmarshalMap(item, &chat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}
	return &chat, nil
}

func (s *ChatService) findChatByMatch(ctx context.Context, matchID string) (*models.Chat, error) {
	items, err := s.Dynamo.QueryItemsWithIndex(
		ctx,
		models.ChatsTable,
		models.ChatMatchIndex,
		"matchId = :matchId",
		map[string]types.AttributeValue{
			":matchId": &types.AttributeValueMemberS{Value: matchID},
		},
		nil,
		"",
		1,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up chat for match %s: %w", matchID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	var chat models.Chat
	if err := attributevalue.UnmarshalMap(items[0], &chat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}
	return &chat, nil
}

// createChatForMatch promotes a match into a chat on its first message.
// From this point the match stops appearing in the match change-set.
func (s *ChatService) createChatForMatch(ctx context.Context, senderID, matchID string) (*models.Chat, error) {
	item, err := s.Dynamo.GetItem(ctx, models.MatchesTable, map[string]types.AttributeValue{
		"matchId": &types.AttributeValueMemberS{Value: matchID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	var match models.Match
	if err := attributevalue.UnmarshalMap(item, &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}
	if !match.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}
	if match.Status != models.MatchStatusActive {
		return nil, ErrMatchInactive
	}

	now := utils.NowRFC3339()
	chat := models.Chat{
		ChatID:         uuid.NewString(),
		MatchID:        matchID,
		UserA:          match.UserA,
		UserB:          match.UserB,
		UserAName:      s.lookupName(ctx, match.UserA),
		UserBName:      s.lookupName(ctx, match.UserB),
		CreatedAt:      now,
		UpdatedAt:      now,
		FirstMessageAt: now,
		PlaceID:        match.PlaceID,
		PlaceName:      match.PlaceName,
	}

	if err := s.Dynamo.PutItem(ctx, models.ChatsTable, chat); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	_, err = s.Dynamo.UpdateItem(
		ctx,
		models.MatchesTable,
		"SET firstMessageAt = :now",
		map[string]types.AttributeValue{
			"matchId": &types.AttributeValueMemberS{Value: matchID},
		},
		map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now},
		},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to stamp firstMessageAt on match %s: %w", matchID, err)
	}

	log.Printf("💬 Created chat %s for match %s", chat.ChatID, matchID)
	return &chat, nil
}

func (s *ChatService) bumpChatPreview(ctx context.Context, chat *models.Chat, senderID string, payload models.EncryptedPayload, now string) error {
	unreadAttr := "unreadB"
	if chat.UserB == senderID {
		unreadAttr = "unreadA"
	}

	_, err := s.Dynamo.UpdateItem(
		ctx,
		models.ChatsTable,
		fmt.Sprintf("SET lastMessage = :ct, lastMessageIv = :iv, lastMessageTag = :tag, lastMessageAt = :now, updatedAt = :now, lastSenderId = :sender ADD %s :one", unreadAttr),
		map[string]types.AttributeValue{
			"chatId": &types.AttributeValueMemberS{Value: chat.ChatID},
		},
		map[string]types.AttributeValue{
			":ct":     &types.AttributeValueMemberS{Value: payload.Ciphertext},
			":iv":     &types.AttributeValueMemberS{Value: payload.IV},
			":tag":    &types.AttributeValueMemberS{Value: payload.Tag},
			":now":    &types.AttributeValueMemberS{Value: now},
			":sender": &types.AttributeValueMemberS{Value: senderID},
			":one":    &types.AttributeValueMemberN{Value: "1"},
		},
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to update chat preview: %w", err)
	}
	return nil
}

func (s *ChatService) lookupName(ctx context.Context, userID string) string {
	item, err := s.Dynamo.GetItem(ctx, models.UserProfilesTable, map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	})
	if err != nil {
		log.Printf("⚠️ Failed to fetch profile for %s: %v", userID, err)
		return ""
	}
	var profile models.UserProfile
	if err := attributevalue.UnmarshalMap(item, &profile); err != nil {
		return ""
	}
	return profile.Name
}
