package models

// DynamoDB table names
const (
	MatchesTable      = "Matches"
	ChatsTable        = "Chats"
	MessagesTable     = "Messages"
	UserPhotosTable   = "UserPhotos"
	UserProfilesTable = "UserProfiles"
)

// Global secondary index names
const (
	MatchUserAIndex = "userA-index"
	MatchUserBIndex = "userB-index"
	ChatUserAIndex  = "userA-index"
	ChatUserBIndex  = "userB-index"
	ChatMatchIndex  = "matchId-index"
	PhotoUserIndex  = "userId-index"
)

// ✅ Match statuses
const (
	MatchStatusActive    = "active"
	MatchStatusUnmatched = "unmatched"
)
