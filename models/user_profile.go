package models

type UserProfile struct {
	UserID string `dynamodbav:"userId" json:"userId"`
	Name   string `dynamodbav:"name" json:"name"`
}
