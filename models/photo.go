package models

// UserPhoto is one photo in a user's profile photo set. S3Key is the
// bare object key; signing happens at read time.
type UserPhoto struct {
	PhotoID   string `dynamodbav:"photoId" json:"photoId"`
	UserID    string `dynamodbav:"userId" json:"userId"`
	S3Key     string `dynamodbav:"s3Key" json:"s3Key"`
	Position  int    `dynamodbav:"position" json:"position"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
}
