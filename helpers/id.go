package helpers

import "github.com/google/uuid"

// Generate returns a fresh unique ID for posts and comments
func Generate() string {
	return uuid.NewString()
}
