package model

// Message types published on the posts subject
const (
	MessagePostCreated = "post_created"
	MessagePostDeleted = "post_deleted"
)

// Message represents how NATS publish message
// should be
type Message struct {
	Type string `json:"type"`
	// From is the acting user
	From string `json:"from"`
	// To is the post the message is about
	To string `json:"to"`
}
