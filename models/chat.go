package models

// Chat is the conversation thread attached to a match that has at least
// one message. Participant ids and names are denormalized so list queries
// never need a match join.
type Chat struct {
	ChatID         string `dynamodbav:"chatId" json:"chatId"`
	MatchID        string `dynamodbav:"matchId" json:"matchId"`
	UserA          string `dynamodbav:"userA" json:"userA"`
	UserB          string `dynamodbav:"userB" json:"userB"`
	UserAName      string `dynamodbav:"userAName,omitempty" json:"userAName,omitempty"`
	UserBName      string `dynamodbav:"userBName,omitempty" json:"userBName,omitempty"`
	CreatedAt      string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt      string `dynamodbav:"updatedAt" json:"updatedAt"` // bumped on message send, read-state change
	FirstMessageAt string `dynamodbav:"firstMessageAt,omitempty" json:"firstMessageAt,omitempty"`
	LastMessageAt  string `dynamodbav:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	LastSenderID   string `dynamodbav:"lastSenderId,omitempty" json:"lastSenderId,omitempty"`
	LastMessage    string `dynamodbav:"lastMessage,omitempty" json:"lastMessage,omitempty"` // ciphertext, base64
	LastMessageIV  string `dynamodbav:"lastMessageIv,omitempty" json:"lastMessageIv,omitempty"`
	LastMessageTag string `dynamodbav:"lastMessageTag,omitempty" json:"lastMessageTag,omitempty"`
	UnreadA        int    `dynamodbav:"unreadA" json:"unreadA"`
	UnreadB        int    `dynamodbav:"unreadB" json:"unreadB"`
	PlaceID        string `dynamodbav:"placeId,omitempty" json:"placeId,omitempty"`
	PlaceName      string `dynamodbav:"placeName,omitempty" json:"placeName,omitempty"`
}

// Counterpart returns the other participant of the chat.
func (c Chat) Counterpart(userID string) string {
	if c.UserA == userID {
		return c.UserB
	}
	return c.UserA
}

// CounterpartName returns the denormalized name of the other participant.
func (c Chat) CounterpartName(userID string) string {
	if c.UserA == userID {
		return c.UserBName
	}
	return c.UserAName
}

// UnreadFor returns the unread counter for the given participant.
func (c Chat) UnreadFor(userID string) int {
	if c.UserA == userID {
		return c.UnreadA
	}
	return c.UnreadB
}

// HasParticipant reports whether userID is one of the two users.
func (c Chat) HasParticipant(userID string) bool {
	return c.UserA == userID || c.UserB == userID
}
