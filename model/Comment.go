package model

import (
	"fmt"
	"time"
)

// Comment struct defines a comment and its replies.
// The shape is recursive but only one level of replies
// is served to clients
type Comment struct {
	Id        string    `json:"id"`
	UserId    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Replies   []Comment `json:"replies"`
}

// FindComment searches a comment by ID, depth-first,
// across the whole tree. Returns nil when absent
func FindComment(comments []Comment, id string) *Comment {
	for i := range comments {
		if comments[i].Id == id {
			return &comments[i]
		}
		if found := FindComment(comments[i].Replies, id); found != nil {
			return found
		}
	}
	return nil
}

// CloneComments returns a deep copy of a comment tree
func CloneComments(comments []Comment) []Comment {
	if comments == nil {
		return nil
	}
	out := make([]Comment, len(comments))
	for i, c := range comments {
		out[i] = c
		out[i].Replies = CloneComments(c.Replies)
	}
	return out
}

// RemoveComment deletes a comment by ID anywhere in the
// tree. Returns the new tree and whether it was found
func RemoveComment(comments []Comment, id string) ([]Comment, bool) {
	for i := range comments {
		if comments[i].Id == id {
			return append(comments[:i:i], comments[i+1:]...), true
		}
		if replies, ok := RemoveComment(comments[i].Replies, id); ok {
			comments[i].Replies = replies
			return comments, true
		}
	}
	return comments, false
}

// Data converts the comment into its persisted fields
func (c Comment) Data() map[string]any {
	return c.data()
}

func (c Comment) data() map[string]any {
	replies := make([]any, 0, len(c.Replies))
	for _, r := range c.Replies {
		replies = append(replies, r.data())
	}

	return map[string]any{
		"id":        c.Id,
		"userId":    c.UserId,
		"text":      c.Text,
		"createdAt": c.CreatedAt,
		"replies":   replies,
	}
}

// CommentsData converts a comment tree into its persisted
// document representation
func CommentsData(comments []Comment) []any {
	out := make([]any, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.data())
	}
	return out
}

// CommentsFromAny decodes the persisted comments field.
// A missing field decodes as the empty list
func CommentsFromAny(v any) ([]Comment, error) {
	if v == nil {
		return []Comment{}, nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("bad comments field: %w", ErrValidation)
	}

	out := make([]Comment, 0, len(list))
	for _, e := range list {
		c, err := commentFromAny(e)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func commentFromAny(v any) (Comment, error) {
	data, ok := v.(map[string]any)
	if !ok {
		return Comment{}, fmt.Errorf("bad comment entry: %w", ErrValidation)
	}

	var c Comment
	if c.Id, ok = asString(data["id"]); !ok || c.Id == "" {
		return Comment{}, fmt.Errorf("comment without id: %w", ErrValidation)
	}
	if c.UserId, ok = asString(data["userId"]); !ok || c.UserId == "" {
		return Comment{}, fmt.Errorf("comment %s: missing userId: %w", c.Id, ErrValidation)
	}
	if c.Text, ok = asString(data["text"]); !ok {
		return Comment{}, fmt.Errorf("comment %s: bad text: %w", c.Id, ErrValidation)
	}
	if c.CreatedAt, ok = asTime(data["createdAt"]); !ok {
		return Comment{}, fmt.Errorf("comment %s: bad createdAt: %w", c.Id, ErrValidation)
	}

	replies, err := CommentsFromAny(data["replies"])
	if err != nil {
		return Comment{}, err
	}
	c.Replies = replies

	return c, nil
}
