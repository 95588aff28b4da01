package model

import (
	"fmt"
	"time"
)

// User struct defines a user profile
type User struct {
	Id          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PhotoUrl    string    `json:"photo_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// PasswordHash never leaves the server
	PasswordHash string `json:"-"`
}

// Data converts the user into its persisted document fields
func (u User) Data() map[string]any {
	return map[string]any{
		"uid":          u.Id,
		"email":        u.Email,
		"displayName":  u.DisplayName,
		"photoURL":     u.PhotoUrl,
		"bio":          u.Bio,
		"createdAt":    u.CreatedAt,
		"passwordHash": u.PasswordHash,
	}
}

// UserFromData decodes a persisted document into a user
func UserFromData(id string, data map[string]any) (User, error) {
	user := User{Id: id}

	email, ok := asString(data["email"])
	if !ok || email == "" {
		return User{}, fmt.Errorf("user %s: missing email: %w", id, ErrValidation)
	}
	user.Email = email

	createdAt, ok := asTime(data["createdAt"])
	if !ok {
		return User{}, fmt.Errorf("user %s: bad createdAt: %w", id, ErrValidation)
	}
	user.CreatedAt = createdAt

	user.DisplayName, _ = asString(data["displayName"])
	user.PhotoUrl, _ = asString(data["photoURL"])
	user.Bio, _ = asString(data["bio"])
	user.PasswordHash, _ = asString(data["passwordHash"])

	return user, nil
}
