package services

import (
	"context"
	"testing"
	"time"

	"spark_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encryptedMessage(t *testing.T, id, chatID, senderID, content string, createdAt time.Time) models.Message {
	t.Helper()
	payload, err := EncryptMessage(testKey(), content)
	require.NoError(t, err)
	return models.Message{
		ChatID:     chatID,
		MessageID:  id,
		SenderID:   senderID,
		Ciphertext: payload.Ciphertext,
		IV:         payload.IV,
		Tag:        payload.Tag,
		CreatedAt:  rfc3339(createdAt),
	}
}

func TestDecryptMessages(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	rows := []models.Message{
		encryptedMessage(t, "msg1", "c1", "ana", "hi!", now.Add(-time.Minute)),
		encryptedMessage(t, "msg2", "c1", "me", "hey :)", now),
	}

	records := decryptMessages(context.Background(), rows, testKey())

	require.Len(t, records, 2)
	require.NotNil(t, records[0])
	require.NotNil(t, records[1])
	assert.Equal(t, "hi!", records[0].Content)
	assert.Equal(t, "hey :)", records[1].Content)
	assert.Equal(t, now.Add(-time.Minute).UnixMilli(), records[0].SyncedAt)
}

func TestDecryptMessagesDropsCorruptedRow(t *testing.T) {
	now := time.Now().UTC()
	good := encryptedMessage(t, "good", "c1", "ana", "still on?", now)
	bad := encryptedMessage(t, "bad", "c1", "ana", "???", now)
	bad.Ciphertext = "ZGVhZGJlZWY=" // valid base64, wrong content

	records := decryptMessages(context.Background(), []models.Message{good, bad}, testKey())

	require.NotNil(t, records[0])
	assert.Nil(t, records[1], "undecryptable rows are dropped, not surfaced")
}

func TestDecryptMessagesSyncedAtUsesReadAt(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	row := encryptedMessage(t, "msg1", "c1", "ana", "hello", now.Add(-time.Hour))
	row.ReadAt = rfc3339(now)

	records := decryptMessages(context.Background(), []models.Message{row}, testKey())

	require.NotNil(t, records[0])
	assert.Equal(t, now.UnixMilli(), records[0].SyncedAt)
	assert.Equal(t, now.UnixMilli(), records[0].ReadAt)
}

func TestClassifyMessages(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	since := now.Add(-time.Hour)

	created := encryptedMessage(t, "created", "c1", "ana", "new", now.Add(-time.Minute))
	readOnly := encryptedMessage(t, "read-only", "c1", "me", "old", now.Add(-9*time.Hour))
	readOnly.ReadAt = rfc3339(now.Add(-time.Minute))
	dropped := encryptedMessage(t, "dropped", "c1", "ana", "x", now)

	rows := []models.Message{created, readOnly, dropped}
	records := decryptMessages(context.Background(), rows, testKey())
	records[2] = nil // simulate a decrypt failure

	changes := classifyMessages(rows, records, &since, false)

	require.Len(t, changes.Created, 1)
	assert.Equal(t, "created", changes.Created[0].ID)
	require.Len(t, changes.Updated, 1)
	assert.Equal(t, "read-only", changes.Updated[0].ID, "a readAt-only change syncs as updated")
	assert.Empty(t, changes.Deleted, "messages are never tombstoned")
}

func TestClassifyMessages_Force(t *testing.T) {
	now := time.Now().UTC()
	since := now.Add(-time.Minute)
	rows := []models.Message{encryptedMessage(t, "m", "c1", "ana", "x", now)}
	records := decryptMessages(context.Background(), rows, testKey())

	changes := classifyMessages(rows, records, &since, true)

	assert.Empty(t, changes.Created)
	assert.Len(t, changes.Updated, 1)
}

func TestClassifyMessages_FirstSync(t *testing.T) {
	now := time.Now().UTC()
	rows := []models.Message{encryptedMessage(t, "m", "c1", "ana", "x", now)}
	records := decryptMessages(context.Background(), rows, testKey())

	changes := classifyMessages(rows, records, nil, false)

	assert.Len(t, changes.Created, 1)
	assert.Empty(t, changes.Updated)
}
