package model

import (
	"fmt"
	"time"
)

// Post struct defines how a post must be
type Post struct {
	Id          string    `json:"id"`
	UserId      string    `json:"user_id"`
	ImageUrl    string    `json:"image_url,omitempty"`
	ImageBase64 string    `json:"image_base64,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Likes       []string  `json:"likes"`
	Saves       []string  `json:"saves"`
	Comments    []Comment `json:"comments"`
	FileName    string    `json:"file_name,omitempty"`
	FileType    string    `json:"file_type,omitempty"`
}

// LikedBy checks if the user is part of the post like set
func (p Post) LikedBy(user string) bool {
	return contains(p.Likes, user)
}

// SavedBy checks if the user is part of the post save set
func (p Post) SavedBy(user string) bool {
	return contains(p.Saves, user)
}

// Clone returns a deep copy of the post, so optimistic
// mutations never alias the cached value
func (p Post) Clone() Post {
	c := p
	c.Likes = append([]string(nil), p.Likes...)
	c.Saves = append([]string(nil), p.Saves...)
	c.Comments = CloneComments(p.Comments)
	return c
}

// Data converts the post into its persisted document fields
func (p Post) Data() map[string]any {
	comments := make([]any, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, c.data())
	}

	return map[string]any{
		"userId":      p.UserId,
		"imageUrl":    p.ImageUrl,
		"imageBase64": p.ImageBase64,
		"caption":     p.Caption,
		"createdAt":   p.CreatedAt,
		"likes":       append([]string(nil), p.Likes...),
		"saves":       append([]string(nil), p.Saves...),
		"comments":    comments,
		"fileName":    p.FileName,
		"fileType":    p.FileType,
	}
}

// PostFromData decodes a persisted document into a post.
// Documents come from an external store, so the shape is
// never trusted: a malformed field fails with ErrValidation
func PostFromData(id string, data map[string]any) (Post, error) {
	post := Post{Id: id}

	userId, ok := asString(data["userId"])
	if !ok || userId == "" {
		return Post{}, fmt.Errorf("post %s: missing userId: %w", id, ErrValidation)
	}
	post.UserId = userId

	createdAt, ok := asTime(data["createdAt"])
	if !ok {
		return Post{}, fmt.Errorf("post %s: bad createdAt: %w", id, ErrValidation)
	}
	post.CreatedAt = createdAt

	post.ImageUrl, _ = asString(data["imageUrl"])
	post.ImageBase64, _ = asString(data["imageBase64"])
	post.Caption, _ = asString(data["caption"])
	post.FileName, _ = asString(data["fileName"])
	post.FileType, _ = asString(data["fileType"])

	likes, ok := asStringSlice(data["likes"])
	if !ok {
		return Post{}, fmt.Errorf("post %s: bad likes: %w", id, ErrValidation)
	}
	post.Likes = likes

	saves, ok := asStringSlice(data["saves"])
	if !ok {
		return Post{}, fmt.Errorf("post %s: bad saves: %w", id, ErrValidation)
	}
	post.Saves = saves

	comments, err := CommentsFromAny(data["comments"])
	if err != nil {
		return Post{}, fmt.Errorf("post %s: %w", id, err)
	}
	post.Comments = comments

	return post, nil
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// asString reads a document field as string
func asString(v any) (string, bool) {
	if v == nil {
		return "", true
	}
	s, ok := v.(string)
	return s, ok
}

// asTime reads a document field as timestamp. The in-memory
// store keeps time.Time, the graph store unix milliseconds
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case int64:
		return time.UnixMilli(t).UTC(), true
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.UTC(), true
	default:
		return time.Time{}, false
	}
}

// asStringSlice reads a document field as set of user IDs.
// A missing field decodes as the empty set, like legacy
// documents written without it
func asStringSlice(v any) ([]string, bool) {
	switch list := v.(type) {
	case nil:
		return []string{}, true
	case []string:
		return append([]string(nil), list...), true
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
