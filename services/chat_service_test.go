package services

import (
	"context"
	"testing"
	"time"

	"spark_server/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatRowFixture(t *testing.T) (*stubStore, models.Chat) {
	t.Helper()
	chat := models.Chat{
		ChatID:    "c1",
		MatchID:   "m1",
		UserA:     "alice",
		UserB:     "bob",
		CreatedAt: rfc3339(time.Now().Add(-time.Hour)),
		UpdatedAt: rfc3339(time.Now().Add(-time.Hour)),
	}
	store := &stubStore{
		getRows: map[string]map[string]types.AttributeValue{
			models.ChatsTable: marshalRow(t, chat),
		},
	}
	return store, chat
}

func TestSendMessageWithKnownChatSkipsMatchLookup(t *testing.T) {
	store, _ := chatRowFixture(t)
	svc := &ChatService{Dynamo: store, Keys: &KeyService{key: testKey()}}

	message, err := svc.SendMessage(context.Background(), "alice", "m1", "c1", "see you at 8")

	require.NoError(t, err)
	assert.Equal(t, "c1", message.ChatID)
	assert.Equal(t, "alice", message.SenderID)
	assert.NotEmpty(t, message.Ciphertext)

	// The chat id resolved the chat directly; no GSI query ran
	assert.Empty(t, store.queries)
	require.Len(t, store.puts, 1)
	assert.Equal(t, models.MessagesTable, store.puts[0].table)
	require.Len(t, store.updates, 1)
	assert.Equal(t, models.ChatsTable, store.updates[0].table)
	assert.Contains(t, store.updates[0].expression, "lastMessage")
}

func TestSendMessageWithoutChatIDLooksUpByMatch(t *testing.T) {
	store, chat := chatRowFixture(t)
	store.indexRows = map[string][]map[string]types.AttributeValue{
		models.ChatsTable + "/" + models.ChatMatchIndex: {marshalRow(t, chat)},
	}
	svc := &ChatService{Dynamo: store, Keys: &KeyService{key: testKey()}}

	message, err := svc.SendMessage(context.Background(), "bob", "m1", "", "on my way")

	require.NoError(t, err)
	assert.Equal(t, "c1", message.ChatID)
	require.Len(t, store.queries, 1)
	assert.Equal(t, models.ChatMatchIndex, store.queries[0].index)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	store, _ := chatRowFixture(t)
	svc := &ChatService{Dynamo: store, Keys: &KeyService{key: testKey()}}

	_, err := svc.SendMessage(context.Background(), "carol", "m1", "c1", "hi")

	assert.ErrorIs(t, err, ErrNotParticipant)
	assert.Empty(t, store.puts)
}

func TestSendMessageRejectsChatMatchMismatch(t *testing.T) {
	store, _ := chatRowFixture(t)
	svc := &ChatService{Dynamo: store, Keys: &KeyService{key: testKey()}}

	_, err := svc.SendMessage(context.Background(), "alice", "other-match", "c1", "hi")

	require.Error(t, err)
	assert.Empty(t, store.puts)
}
