package models

// Wire types for the incremental sync protocol. Field names are
// snake_case because the mobile client's local store applies the payload
// verbatim. Timestamps on the wire are epoch milliseconds; SyncedAt is
// the max of a record's non-null timestamps (the client's dirty marker).

type SyncMatch struct {
	ID            string `json:"id"`
	UserA         string `json:"user_a"`
	UserB         string `json:"user_b"`
	Status        string `json:"status"`
	MatchedAt     int64  `json:"matched_at"`
	UnmatchedAt   int64  `json:"unmatched_at,omitempty"`
	UserAOpenedAt int64  `json:"user_a_opened_at,omitempty"`
	UserBOpenedAt int64  `json:"user_b_opened_at,omitempty"`
	PlaceID       string `json:"place_id,omitempty"`
	PlaceName     string `json:"place_name,omitempty"`
	SyncedAt      int64  `json:"synced_at"`
}

type SyncChat struct {
	ID               string `json:"id"`
	MatchID          string `json:"match_id"`
	CreatedAt        int64  `json:"created_at"`
	LastMessage      string `json:"last_message"` // decrypted preview
	LastMessageAt    int64  `json:"last_message_at,omitempty"`
	CounterpartID    string `json:"counterpart_id"`
	CounterpartName  string `json:"counterpart_name"`
	CounterpartPhoto string `json:"counterpart_photo,omitempty"` // signed URL
	UnreadCount      int    `json:"unread_count"`
	PlaceID          string `json:"place_id,omitempty"`
	PlaceName        string `json:"place_name,omitempty"`
	SyncedAt         int64  `json:"synced_at"`
}

// A SyncMessage only ever changes by its read_at being set; consumers
// must not assume an "updated" message differs in content.
type SyncMessage struct {
	ID        string `json:"id"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Content   string `json:"content"` // decrypted
	CreatedAt int64  `json:"created_at"`
	ReadAt    int64  `json:"read_at,omitempty"`
	SyncedAt  int64  `json:"synced_at"`
}

type MatchChanges struct {
	Created []SyncMatch `json:"created"`
	Updated []SyncMatch `json:"updated"`
	Deleted []string    `json:"deleted"`
}

type ChatChanges struct {
	Created []SyncChat `json:"created"`
	Updated []SyncChat `json:"updated"`
	Deleted []string   `json:"deleted"`
}

type MessageChanges struct {
	Created []SyncMessage `json:"created"`
	Updated []SyncMessage `json:"updated"`
	Deleted []string      `json:"deleted"` // always empty; messages are never tombstoned
}

// NewMatchChanges returns an empty change-set with non-nil slices so the
// payload always marshals arrays, never null.
func NewMatchChanges() MatchChanges {
	return MatchChanges{Created: []SyncMatch{}, Updated: []SyncMatch{}, Deleted: []string{}}
}

func NewChatChanges() ChatChanges {
	return ChatChanges{Created: []SyncChat{}, Updated: []SyncChat{}, Deleted: []string{}}
}

func NewMessageChanges() MessageChanges {
	return MessageChanges{Created: []SyncMessage{}, Updated: []SyncMessage{}, Deleted: []string{}}
}

type SyncChanges struct {
	Matches  MatchChanges   `json:"matches"`
	Chats    ChatChanges    `json:"chats"`
	Messages MessageChanges `json:"messages"`
}

type SyncRequest struct {
	LastPulledAt  *int64   `json:"last_pulled_at"` // epoch ms, nil on first sync
	ForceUpdates  bool     `json:"force_updates"`
	LocalChatIDs  []string `json:"local_chat_ids"`
	LocalMatchIDs []string `json:"local_match_ids"`
}

type SyncResponse struct {
	Changes   SyncChanges `json:"changes"`
	Timestamp int64       `json:"timestamp"` // client's next last_pulled_at
}
