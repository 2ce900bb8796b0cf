package models

type Match struct {
	MatchID        string `dynamodbav:"matchId" json:"matchId"`
	UserA          string `dynamodbav:"userA" json:"userA"`
	UserB          string `dynamodbav:"userB" json:"userB"`
	Status         string `dynamodbav:"status" json:"status"` // active, unmatched
	MatchedAt      string `dynamodbav:"matchedAt" json:"matchedAt"`
	UnmatchedAt    string `dynamodbav:"unmatchedAt,omitempty" json:"unmatchedAt,omitempty"`
	UserAOpenedAt  string `dynamodbav:"userAOpenedAt,omitempty" json:"userAOpenedAt,omitempty"`
	UserBOpenedAt  string `dynamodbav:"userBOpenedAt,omitempty" json:"userBOpenedAt,omitempty"`
	FirstMessageAt string `dynamodbav:"firstMessageAt,omitempty" json:"firstMessageAt,omitempty"` // set once the match's chat has a message
	PlaceID        string `dynamodbav:"placeId,omitempty" json:"placeId,omitempty"`
	PlaceName      string `dynamodbav:"placeName,omitempty" json:"placeName,omitempty"`
}

// Counterpart returns the other participant of the match.
func (m Match) Counterpart(userID string) string {
	if m.UserA == userID {
		return m.UserB
	}
	return m.UserA
}

// HasParticipant reports whether userID is one of the two users.
func (m Match) HasParticipant(userID string) bool {
	return m.UserA == userID || m.UserB == userID
}
