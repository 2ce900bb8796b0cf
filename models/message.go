package models

// Message content is stored encrypted; plaintext only exists transiently
// inside a request after the decrypt step.
type Message struct {
	ChatID     string `dynamodbav:"chatId" json:"chatId"`
	MessageID  string `dynamodbav:"messageId" json:"messageId"`
	SenderID   string `dynamodbav:"senderId" json:"senderId"`
	Ciphertext string `dynamodbav:"ciphertext" json:"ciphertext"` // base64
	IV         string `dynamodbav:"iv" json:"iv"`                 // base64
	Tag        string `dynamodbav:"tag" json:"tag"`               // base64
	CreatedAt  string `dynamodbav:"createdAt" json:"createdAt"`
	ReadAt     string `dynamodbav:"readAt,omitempty" json:"readAt,omitempty"`
}

// EncryptedPayload is the ciphertext/iv/tag triple shared by messages and
// chat previews. The tag is kept separate from the ciphertext for wire
// compatibility with the mobile client's crypto layer.
type EncryptedPayload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
}
