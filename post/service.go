package post

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pictura/pictura/database"
	"github.com/pictura/pictura/helpers"
	"github.com/pictura/pictura/model"
)

const (
	// MaxInlineBytes is the biggest source image stored inline
	// on the post document
	MaxInlineBytes = 1 << 20
	// MaxUploadBytes is the biggest image accepted at all; above
	// the inline limit the blob service takes over
	MaxUploadBytes = 10 << 20
	// MaxEncodedLen caps the inline base64 representation
	MaxEncodedLen = 10_000_000

	// casAttempts bounds the reply retry loop
	casAttempts = 5
)

// Service owns every remote write against the posts
// collection. Each operation issues exactly one store write;
// local optimistic state is the view synchronizer's job
type Service struct {
	Store database.DocumentStore
	// Cache is dropped whenever the newest-post set changes
	Cache *memcache.Client
	// Uploader handles images too big for inline storage; nil
	// means they are rejected
	Uploader Uploader

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a post service over the given store
func NewService(store database.DocumentStore, cache *memcache.Client, uploader Uploader) *Service {
	return &Service{
		Store:    store,
		Cache:    cache,
		Uploader: uploader,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Create validates and writes a new post with empty like, save
// and comment sets, then announces it on the posts subject
func (s *Service) Create(ctx context.Context, authorId string, body model.PostBody) (model.Post, error) {
	if authorId == "" {
		return model.Post{}, fmt.Errorf("not signed in: %w", model.ErrAuth)
	}
	if len(body.Image) == 0 {
		return model.Post{}, fmt.Errorf("image required: %w", model.ErrValidation)
	}
	if !strings.HasPrefix(body.FileType, "image/") {
		return model.Post{}, fmt.Errorf("only image files are allowed: %w", model.ErrValidation)
	}
	if len(body.Image) > MaxUploadBytes {
		return model.Post{}, fmt.Errorf("image too large: %w", model.ErrValidation)
	}

	post := model.Post{
		Id:        helpers.Generate(),
		UserId:    authorId,
		Caption:   strings.TrimSpace(body.Caption),
		CreatedAt: time.Now().UTC(),
		Likes:     []string{},
		Saves:     []string{},
		Comments:  []model.Comment{},
		FileName:  body.FileName,
		FileType:  body.FileType,
	}

	if len(body.Image) <= MaxInlineBytes {
		encoded := "data:" + body.FileType + ";base64," + base64.StdEncoding.EncodeToString(body.Image)
		if len(encoded) > MaxEncodedLen {
			return model.Post{}, fmt.Errorf("encoded image too large: %w", model.ErrValidation)
		}
		post.ImageBase64 = encoded
	} else {
		if s.Uploader == nil {
			return model.Post{}, fmt.Errorf("image above inline limit: %w", model.ErrValidation)
		}
		url, err := s.Uploader.Upload(ctx, post.Id, body.FileType, body.Image)
		if err != nil {
			return model.Post{}, err
		}
		post.ImageUrl = url
	}

	if err := s.Store.Set(ctx, database.Posts, post.Id, post.Data()); err != nil {
		return model.Post{}, err
	}

	// The author's post count is advisory; a failed increment
	// must not fail the creation
	_ = s.Store.UpdateFields(ctx, database.Users, authorId, []database.FieldOp{
		{Kind: database.OpIncrement, Field: "postCount", Value: int64(1)},
	})

	database.CacheDelete(s.Cache, database.FeedCacheKey)
	helpers.IncrementPostsCreated()
	helpers.Publish(helpers.PostsSubject, model.Message{
		Type: model.MessagePostCreated,
		From: authorId,
		To:   post.Id,
	})

	return post, nil
}

// ToggleLike flips the user's membership in the post like set
// and returns the new membership. The write is a server-side
// atomic set operation, so concurrent toggles by different
// users never lose an update
func (s *Service) ToggleLike(ctx context.Context, p model.Post, userId string) (bool, error) {
	return s.toggleMembership(ctx, p, userId, "likes", p.LikedBy(userId))
}

// ToggleSave flips the user's membership in the post save set
func (s *Service) ToggleSave(ctx context.Context, p model.Post, userId string) (bool, error) {
	return s.toggleMembership(ctx, p, userId, "saves", p.SavedBy(userId))
}

func (s *Service) toggleMembership(ctx context.Context, p model.Post, userId string, field string, member bool) (bool, error) {
	if userId == "" {
		return false, fmt.Errorf("not signed in: %w", model.ErrAuth)
	}

	kind := database.OpArrayUnion
	if member {
		kind = database.OpArrayRemove
	}

	err := s.Store.UpdateFields(ctx, database.Posts, p.Id, []database.FieldOp{
		{Kind: kind, Field: field, Value: userId},
	})
	if err != nil {
		return member, err
	}

	return !member, nil
}

// AddComment appends a top-level comment. The remote write is
// an atomic list append, safe under concurrent commenters
func (s *Service) AddComment(ctx context.Context, p model.Post, authorId string, text string) (model.Comment, error) {
	comment, err := NewComment(authorId, text)
	if err != nil {
		return model.Comment{}, err
	}

	err = s.Store.UpdateFields(ctx, database.Posts, p.Id, []database.FieldOp{
		{Kind: database.OpArrayUnion, Field: "comments", Value: comment.Data()},
	})
	if err != nil {
		return model.Comment{}, err
	}

	return comment, nil
}

// AddReply appends a reply under an existing comment. A blind
// overwrite of the comment list would race with concurrent
// repliers and silently drop theirs, so reply writes are
// serialized per post and re-read the tree right before a
// revision-checked write
func (s *Service) AddReply(ctx context.Context, postId string, parentId string, authorId string, text string) (model.Comment, error) {
	reply, err := NewComment(authorId, text)
	if err != nil {
		return model.Comment{}, err
	}

	lock := s.lock(postId)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < casAttempts; attempt++ {
		doc, err := s.Store.Get(ctx, database.Posts, postId)
		if err != nil {
			return model.Comment{}, err
		}

		comments, err := model.CommentsFromAny(doc.Data["comments"])
		if err != nil {
			return model.Comment{}, err
		}

		parent := model.FindComment(comments, parentId)
		if parent == nil {
			return model.Comment{}, fmt.Errorf("comment %s: %w", parentId, model.ErrNotFound)
		}
		parent.Replies = append(parent.Replies, reply)

		err = s.Store.CheckAndSetField(ctx, database.Posts, postId, "comments",
			model.CommentsData(comments), doc.Rev)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, database.ErrConflict) {
			return model.Comment{}, err
		}
	}

	return model.Comment{}, fmt.Errorf("reply to %s kept conflicting: %w", parentId, model.ErrNetwork)
}

// Delete removes a post; only its author may do it
func (s *Service) Delete(ctx context.Context, p model.Post, requesterId string) error {
	if requesterId == "" || requesterId != p.UserId {
		return fmt.Errorf("only the author may delete a post: %w", model.ErrAuth)
	}

	if err := s.Store.Delete(ctx, database.Posts, p.Id); err != nil {
		return err
	}

	_ = s.Store.UpdateFields(ctx, database.Users, p.UserId, []database.FieldOp{
		{Kind: database.OpIncrement, Field: "postCount", Value: int64(-1)},
	})

	s.mu.Lock()
	delete(s.locks, p.Id)
	s.mu.Unlock()

	database.CacheDelete(s.Cache, database.FeedCacheKey)
	helpers.Publish(helpers.PostsSubject, model.Message{
		Type: model.MessagePostDeleted,
		From: requesterId,
		To:   p.Id,
	})

	return nil
}

// Get reads one post back from the store
func (s *Service) Get(ctx context.Context, id string) (model.Post, error) {
	doc, err := s.Store.Get(ctx, database.Posts, id)
	if err != nil {
		return model.Post{}, err
	}
	return model.PostFromData(doc.Id, doc.Data)
}

// NewComment validates and builds a comment with a fresh ID
// and creation timestamp
func NewComment(authorId string, text string) (model.Comment, error) {
	if authorId == "" {
		return model.Comment{}, fmt.Errorf("not signed in: %w", model.ErrAuth)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, fmt.Errorf("empty comment: %w", model.ErrValidation)
	}

	return model.Comment{
		Id:        helpers.Generate(),
		UserId:    authorId,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		Replies:   []model.Comment{},
	}, nil
}

func (s *Service) lock(postId string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[postId]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[postId] = lock
	}
	return lock
}
