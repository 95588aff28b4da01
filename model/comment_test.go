package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []Comment {
	return []Comment{
		{
			Id:        "c1",
			UserId:    "alice",
			Text:      "first",
			CreatedAt: time.Date(2023, 9, 1, 10, 0, 0, 0, time.UTC),
			Replies: []Comment{
				{
					Id:        "c1r1",
					UserId:    "bob",
					Text:      "reply",
					CreatedAt: time.Date(2023, 9, 1, 10, 5, 0, 0, time.UTC),
					Replies: []Comment{
						{Id: "c1r1r1", UserId: "carol", Text: "deep", CreatedAt: time.Date(2023, 9, 1, 10, 6, 0, 0, time.UTC), Replies: []Comment{}},
					},
				},
			},
		},
		{Id: "c2", UserId: "bob", Text: "second", CreatedAt: time.Date(2023, 9, 1, 11, 0, 0, 0, time.UTC), Replies: []Comment{}},
	}
}

func TestFindComment(t *testing.T) {
	tree := sampleTree()

	top := FindComment(tree, "c2")
	require.NotNil(t, top)
	assert.Equal(t, "second", top.Text)

	nested := FindComment(tree, "c1r1r1")
	require.NotNil(t, nested)
	assert.Equal(t, "carol", nested.UserId)

	assert.Nil(t, FindComment(tree, "missing"))
}

func TestFindCommentReturnsPointerIntoTree(t *testing.T) {
	tree := sampleTree()

	parent := FindComment(tree, "c1r1")
	require.NotNil(t, parent)
	parent.Replies = append(parent.Replies, Comment{Id: "new", UserId: "dave", Text: "hi"})

	assert.NotNil(t, FindComment(tree, "new"))
}

func TestRemoveComment(t *testing.T) {
	tree := sampleTree()

	out, removed := RemoveComment(tree, "c1r1")
	assert.True(t, removed)
	assert.Nil(t, FindComment(out, "c1r1"))
	assert.Nil(t, FindComment(out, "c1r1r1"))
	assert.NotNil(t, FindComment(out, "c2"))

	out, removed = RemoveComment(tree, "missing")
	assert.False(t, removed)
	assert.Len(t, out, 2)
}

func TestCloneCommentsIsIndependent(t *testing.T) {
	tree := sampleTree()
	clone := CloneComments(tree)

	reply := FindComment(clone, "c1r1")
	require.NotNil(t, reply)
	reply.Text = "edited"
	reply.Replies = append(reply.Replies, Comment{Id: "extra"})

	assert.Equal(t, "reply", FindComment(tree, "c1r1").Text)
	assert.Nil(t, FindComment(tree, "extra"))
}

func TestCommentsRoundTrip(t *testing.T) {
	tree := sampleTree()

	decoded, err := CommentsFromAny(CommentsData(tree))
	require.NoError(t, err)
	assert.Equal(t, tree, decoded)
}

func TestCommentsFromAnyRejectsBadShapes(t *testing.T) {
	_, err := CommentsFromAny("not a list")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = CommentsFromAny([]any{"not a map"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = CommentsFromAny([]any{map[string]any{"userId": "alice", "text": "no id"}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCommentsFromAnyNil(t *testing.T) {
	decoded, err := CommentsFromAny(nil)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestPostFromDataDefaults(t *testing.T) {
	created := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)

	post, err := PostFromData("p1", map[string]any{
		"userId":    "alice",
		"caption":   "hello",
		"createdAt": created.UnixMilli(),
	})
	require.NoError(t, err)

	assert.Equal(t, "p1", post.Id)
	assert.True(t, post.CreatedAt.Equal(created))
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Saves)
	assert.Empty(t, post.Comments)
}

func TestPostFromDataRejectsMissingAuthor(t *testing.T) {
	_, err := PostFromData("p1", map[string]any{"caption": "orphan"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPostCloneIsIndependent(t *testing.T) {
	post := Post{
		Id:       "p1",
		UserId:   "alice",
		Likes:    []string{"bob"},
		Comments: sampleTree(),
	}

	clone := post.Clone()
	clone.Likes = append(clone.Likes, "carol")
	FindComment(clone.Comments, "c1").Text = "edited"

	assert.Equal(t, []string{"bob"}, post.Likes)
	assert.Equal(t, "first", FindComment(post.Comments, "c1").Text)
}
