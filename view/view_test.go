package view

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pictura/pictura/database"
	"github.com/pictura/pictura/feed"
	"github.com/pictura/pictura/helpers"
	"github.com/pictura/pictura/model"
	"github.com/pictura/pictura/post"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore lets a test reject the next writes, the way a
// network partition or a store rule would
type flakyStore struct {
	*database.Memory
	failWrites bool
}

var errRejected = errors.New("store rejected the write")

func (f *flakyStore) UpdateFields(ctx context.Context, collection string, id string, ops []database.FieldOp) error {
	if f.failWrites {
		return fmt.Errorf("%s/%s: %w", collection, id, errRejected)
	}
	return f.Memory.UpdateFields(ctx, collection, id, ops)
}

func (f *flakyStore) CheckAndSetField(ctx context.Context, collection string, id string, field string, value any, rev int64) error {
	if f.failWrites {
		return fmt.Errorf("%s/%s: %w", collection, id, errRejected)
	}
	return f.Memory.CheckAndSetField(ctx, collection, id, field, value, rev)
}

func (f *flakyStore) Delete(ctx context.Context, collection string, id string) error {
	if f.failWrites {
		return fmt.Errorf("%s/%s: %w", collection, id, errRejected)
	}
	return f.Memory.Delete(ctx, collection, id)
}

type fixture struct {
	store *flakyStore
	posts *post.Service
	views *Registry
}

func newFixture(t *testing.T, seeded int) *fixture {
	t.Helper()

	store := &flakyStore{Memory: database.NewMemory()}
	posts := post.NewService(store, nil, nil)
	engine := feed.NewEngine(store, nil)
	views := NewRegistry(engine, posts, nil)

	base := time.Date(2023, 9, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < seeded; i++ {
		p := model.Post{
			Id:        fmt.Sprintf("post-%02d", i),
			UserId:    "alice",
			Caption:   fmt.Sprintf("caption %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Likes:     []string{},
			Saves:     []string{"alice"},
			Comments:  []model.Comment{},
		}
		require.NoError(t, store.Set(context.Background(), database.Posts, p.Id, p.Data()))
	}

	return &fixture{store: store, posts: posts, views: views}
}

func TestLoadFillsTheView(t *testing.T) {
	f := newFixture(t, 3)
	v := f.views.Session("alice").Global

	require.NoError(t, v.Load(context.Background()))
	assert.True(t, v.Loaded())

	posts := v.Posts()
	require.Len(t, posts, 3)
	assert.Equal(t, "post-02", posts[0].Id)
	assert.False(t, v.HasMore())
}

func TestMoreAppendsNextPage(t *testing.T) {
	f := newFixture(t, 8)
	v := f.views.Session("alice").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))
	require.Len(t, v.Posts(), feed.DefaultPageSize)
	require.True(t, v.HasMore())

	require.NoError(t, v.More(ctx))
	assert.Len(t, v.Posts(), 8)
	assert.False(t, v.HasMore())
}

func TestToggleLikeOptimisticAndConfirmed(t *testing.T) {
	f := newFixture(t, 1)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.ToggleLike(ctx, "post-00", "bob"))

	assert.True(t, v.Posts()[0].LikedBy("bob"))

	stored, err := f.posts.Get(ctx, "post-00")
	require.NoError(t, err)
	assert.True(t, stored.LikedBy("bob"))
}

func TestToggleLikeRollsBackOnRejectedWrite(t *testing.T) {
	f := newFixture(t, 1)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))

	f.store.failWrites = true
	err := v.ToggleLike(ctx, "post-00", "bob")
	assert.ErrorIs(t, err, errRejected)

	// The optimistic flip is undone
	assert.False(t, v.Posts()[0].LikedBy("bob"))

	f.store.failWrites = false
	stored, getErr := f.posts.Get(ctx, "post-00")
	require.NoError(t, getErr)
	assert.False(t, stored.LikedBy("bob"))
}

func TestUnsaveRemovesFromSavedView(t *testing.T) {
	f := newFixture(t, 2)
	v := f.views.Session("alice").Saved
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))
	require.Len(t, v.Posts(), 2)

	require.NoError(t, v.ToggleSave(ctx, "post-01", "alice"))

	posts := v.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "post-00", posts[0].Id)

	stored, err := f.posts.Get(ctx, "post-01")
	require.NoError(t, err)
	assert.False(t, stored.SavedBy("alice"))
}

func TestUnsaveReinsertsOnRejectedWrite(t *testing.T) {
	f := newFixture(t, 3)
	v := f.views.Session("alice").Saved
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))
	before := v.Posts()
	require.Len(t, before, 3)

	f.store.failWrites = true
	err := v.ToggleSave(ctx, "post-01", "alice")
	assert.ErrorIs(t, err, errRejected)

	after := v.Posts()
	require.Len(t, after, 3)
	for i := range before {
		assert.Equal(t, before[i].Id, after[i].Id)
	}
}

func TestSaveOnGlobalViewOnlyFlipsMembership(t *testing.T) {
	f := newFixture(t, 2)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.ToggleSave(ctx, "post-01", "bob"))

	// The post stays listed on the global feed
	posts := v.Posts()
	require.Len(t, posts, 2)
	assert.True(t, posts[0].SavedBy("bob"))
}

func TestAddCommentConfirmsPlaceholder(t *testing.T) {
	f := newFixture(t, 1)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))

	comment, err := v.AddComment(ctx, "post-00", "bob", "lovely")
	require.NoError(t, err)

	posts := v.Posts()
	require.Len(t, posts[0].Comments, 1)
	assert.Equal(t, comment.Id, posts[0].Comments[0].Id)

	stored, err := f.posts.Get(ctx, "post-00")
	require.NoError(t, err)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, comment.Id, stored.Comments[0].Id)
}

func TestAddCommentRollsBackOnRejectedWrite(t *testing.T) {
	f := newFixture(t, 1)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))

	f.store.failWrites = true
	_, err := v.AddComment(ctx, "post-00", "bob", "lost")
	assert.ErrorIs(t, err, errRejected)

	assert.Empty(t, v.Posts()[0].Comments)
}

func TestAddReplyUnderComment(t *testing.T) {
	f := newFixture(t, 1)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))

	comment, err := v.AddComment(ctx, "post-00", "bob", "top")
	require.NoError(t, err)

	reply, err := v.AddReply(ctx, "post-00", comment.Id, "carol", "under")
	require.NoError(t, err)

	tree := v.Posts()[0].Comments
	parent := model.FindComment(tree, comment.Id)
	require.NotNil(t, parent)
	require.Len(t, parent.Replies, 1)
	assert.Equal(t, reply.Id, parent.Replies[0].Id)

	stored, err := f.posts.Get(ctx, "post-00")
	require.NoError(t, err)
	assert.NotNil(t, model.FindComment(stored.Comments, reply.Id))
}

func TestAddReplyToMissingParent(t *testing.T) {
	f := newFixture(t, 1)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))

	_, err := v.AddReply(ctx, "post-00", "ghost", "bob", "anyone?")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, v.Posts()[0].Comments)
}

func TestDeleteReinsertsOnRejectedWrite(t *testing.T) {
	f := newFixture(t, 2)
	v := f.views.Session("alice").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))

	f.store.failWrites = true
	err := v.Delete(ctx, "post-01", "alice")
	assert.ErrorIs(t, err, errRejected)

	posts := v.Posts()
	require.Len(t, posts, 2)
	assert.Equal(t, "post-01", posts[0].Id)
}

// rollbackCount reads the rollbacks counter off the metrics
// registry
func rollbackCount(t *testing.T) float64 {
	t.Helper()

	families, err := helpers.GetRegistery().Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() == "mutation_rollbacks_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestStaleRollbackNeitherRestoresNorCounts(t *testing.T) {
	f := newFixture(t, 1)
	v := f.views.Session("bob").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))

	v.mu.Lock()
	stale := v.gen
	v.mu.Unlock()
	require.NoError(t, v.Reset(ctx))

	before := rollbackCount(t)

	// A result landing after the reset belongs to a dead
	// generation; it must neither touch the list nor count as a
	// rollback
	v.rollback(stale, "post-00", func(p *model.Post) { p.Caption = "ghost" })
	v.reinsert(stale, 0, model.Post{Id: "ghost"})

	assert.Equal(t, before, rollbackCount(t))
	posts := v.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "caption 0", posts[0].Caption)

	// A live rollback still counts
	f.store.failWrites = true
	_ = v.ToggleLike(ctx, "post-00", "bob")
	assert.Equal(t, before+1, rollbackCount(t))
}

func TestResetDropsLocalState(t *testing.T) {
	f := newFixture(t, 8)
	v := f.views.Session("alice").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.More(ctx))
	require.Len(t, v.Posts(), 8)

	require.NoError(t, v.Reset(ctx))
	assert.Len(t, v.Posts(), feed.DefaultPageSize)
	assert.True(t, v.HasMore())
}

func TestDisposedViewIgnoresOperations(t *testing.T) {
	f := newFixture(t, 2)
	v := f.views.Session("alice").Global
	ctx := context.Background()

	require.NoError(t, v.Load(ctx))
	v.Dispose()

	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.Reset(ctx))
}

func TestPostCreatedResetsViews(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	global := f.views.Session("bob").Global
	mine := f.views.Session("alice").Mine
	require.NoError(t, global.Load(ctx))
	require.NoError(t, mine.Load(ctx))
	require.Len(t, global.Posts(), 2)

	created, err := f.posts.Create(ctx, "alice", model.PostBody{
		Caption:  "fresh",
		Image:    []byte("img"),
		FileName: "f.png",
		FileType: "image/png",
	})
	require.NoError(t, err)

	f.views.HandlePostEvent(model.Message{
		Type: model.MessagePostCreated,
		From: "alice",
		To:   created.Id,
	})

	// The new post leads both refreshed views
	assert.Equal(t, created.Id, global.Posts()[0].Id)
	assert.Equal(t, created.Id, mine.Posts()[0].Id)
}

func TestDropDisposesSessionViews(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	s := f.views.Session("alice")
	require.NoError(t, s.Global.Load(ctx))
	f.views.Drop("alice")

	// A fresh session starts empty
	again := f.views.Session("alice")
	assert.False(t, again.Global.Loaded())
}
