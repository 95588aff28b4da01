package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/pictura/pictura/feed"
	"github.com/pictura/pictura/helpers"
	"github.com/pictura/pictura/model"
	"github.com/pictura/pictura/post"
)

// View kinds, one per screen
const (
	Global = iota
	Mine
	Saved
)

// View keeps one screen's local copy of the feed and keeps it
// consistent with the store: user actions mutate the copy
// optimistically, the matching remote write runs after, and a
// rejected write rolls the copy back. Each view is an
// independent cache; it re-synchronizes only on its own
// triggers
type View struct {
	kind   int
	owner  string
	engine *feed.Engine
	posts  *post.Service

	mu sync.Mutex
	// gen invalidates in-flight fetches: a result that comes
	// back under an older generation is discarded, so a reset
	// or disposed view never gets late updates
	gen      uint64
	disposed bool
	list     []model.Post
	cursor   model.Cursor
	loaded   bool
}

// New creates a view over the given feed scope
func New(kind int, owner string, engine *feed.Engine, posts *post.Service) *View {
	return &View{kind: kind, owner: owner, engine: engine, posts: posts}
}

func (v *View) filter() feed.Filter {
	switch v.kind {
	case Mine:
		return feed.Filter{Kind: feed.KindAuthor, User: v.owner}
	case Saved:
		return feed.Filter{Kind: feed.KindSaved, User: v.owner}
	default:
		return feed.Filter{Kind: feed.KindGlobal}
	}
}

// Load fetches the first page. A failed initial fetch leaves
// the view empty, never broken
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return nil
	}
	gen := v.gen
	f := v.filter()
	v.mu.Unlock()

	posts, cursor, err := v.engine.FirstPage(ctx, f)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen || v.disposed {
		return nil
	}
	if err != nil {
		v.list = nil
		v.loaded = false
		return err
	}

	v.list = posts
	v.cursor = cursor
	v.loaded = true
	return nil
}

// More appends the next page. Fails with ErrExhausted past the
// last page
func (v *View) More(ctx context.Context) error {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return nil
	}
	gen := v.gen
	f := v.filter()
	cursor := v.cursor
	v.mu.Unlock()

	posts, next, err := v.engine.NextPage(ctx, f, cursor)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen || v.disposed {
		return nil
	}

	v.list = append(v.list, posts...)
	v.cursor = next
	return nil
}

// Posts returns a deep copy of the local list, so callers can
// render it without racing the cache
func (v *View) Posts() []model.Post {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]model.Post, len(v.list))
	for i, p := range v.list {
		out[i] = p.Clone()
	}
	return out
}

// Loaded tells whether the first page ever arrived
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded
}

// HasMore tells whether another page may exist
func (v *View) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cursor.HasMore
}

// Reset throws the local state away and fetches the first page
// again; any fetch still in flight is discarded when it lands
func (v *View) Reset(ctx context.Context) error {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return nil
	}
	v.gen++
	v.list = nil
	v.cursor = model.Cursor{}
	v.loaded = false
	v.mu.Unlock()

	return v.Load(ctx)
}

// Dispose detaches the view; late fetch results are dropped
func (v *View) Dispose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposed = true
	v.gen++
}

// ToggleLike flips the acting user's like on a post, local
// first, store after; a rejected write restores the old value
func (v *View) ToggleLike(ctx context.Context, postId string, userId string) error {
	v.mu.Lock()
	i := v.find(postId)
	if i < 0 {
		v.mu.Unlock()
		return fmt.Errorf("post %s: %w", postId, model.ErrNotFound)
	}
	snapshot := v.list[i].Clone()
	gen := v.gen

	if v.list[i].LikedBy(userId) {
		v.list[i].Likes = without(v.list[i].Likes, userId)
	} else {
		v.list[i].Likes = append(v.list[i].Likes, userId)
	}
	v.mu.Unlock()

	if _, err := v.posts.ToggleLike(ctx, snapshot, userId); err != nil {
		v.rollback(gen, postId, func(p *model.Post) { p.Likes = snapshot.Likes })
		return err
	}
	return nil
}

// ToggleSave flips the save membership. On the saved-posts view
// an unsave also removes the post from the list itself; the
// removal is optimistic, with a compensating re-insertion when
// the store rejects it
func (v *View) ToggleSave(ctx context.Context, postId string, userId string) error {
	v.mu.Lock()
	i := v.find(postId)
	if i < 0 {
		v.mu.Unlock()
		return fmt.Errorf("post %s: %w", postId, model.ErrNotFound)
	}
	snapshot := v.list[i].Clone()
	gen := v.gen

	unsaveFromSavedView := v.kind == Saved && v.list[i].SavedBy(userId) && userId == v.owner
	if unsaveFromSavedView {
		v.list = append(v.list[:i:i], v.list[i+1:]...)
	} else if v.list[i].SavedBy(userId) {
		v.list[i].Saves = without(v.list[i].Saves, userId)
	} else {
		v.list[i].Saves = append(v.list[i].Saves, userId)
	}
	v.mu.Unlock()

	if _, err := v.posts.ToggleSave(ctx, snapshot, userId); err != nil {
		if unsaveFromSavedView {
			v.reinsert(gen, i, snapshot)
		} else {
			v.rollback(gen, postId, func(p *model.Post) { p.Saves = snapshot.Saves })
		}
		return err
	}
	return nil
}

// AddComment appends a comment optimistically; once the store
// confirms, the locally-synthesized placeholder is replaced by
// the authoritative comment
func (v *View) AddComment(ctx context.Context, postId string, userId string, text string) (model.Comment, error) {
	placeholder, err := post.NewComment(userId, text)
	if err != nil {
		return model.Comment{}, err
	}

	v.mu.Lock()
	i := v.find(postId)
	if i < 0 {
		v.mu.Unlock()
		return model.Comment{}, fmt.Errorf("post %s: %w", postId, model.ErrNotFound)
	}
	snapshot := v.list[i].Clone()
	gen := v.gen
	v.list[i].Comments = append(v.list[i].Comments, placeholder)
	v.mu.Unlock()

	comment, err := v.posts.AddComment(ctx, snapshot, userId, text)
	if err != nil {
		v.rollback(gen, postId, func(p *model.Post) {
			p.Comments, _ = model.RemoveComment(p.Comments, placeholder.Id)
		})
		return model.Comment{}, err
	}

	v.confirm(gen, postId, placeholder.Id, comment)
	return comment, nil
}

// AddReply appends a reply under an existing comment of the
// local tree, then mirrors it through the serialized reply
// write path
func (v *View) AddReply(ctx context.Context, postId string, parentId string, userId string, text string) (model.Comment, error) {
	placeholder, err := post.NewComment(userId, text)
	if err != nil {
		return model.Comment{}, err
	}

	v.mu.Lock()
	i := v.find(postId)
	if i < 0 {
		v.mu.Unlock()
		return model.Comment{}, fmt.Errorf("post %s: %w", postId, model.ErrNotFound)
	}
	parent := model.FindComment(v.list[i].Comments, parentId)
	if parent == nil {
		v.mu.Unlock()
		return model.Comment{}, fmt.Errorf("comment %s: %w", parentId, model.ErrNotFound)
	}
	gen := v.gen
	parent.Replies = append(parent.Replies, placeholder)
	v.mu.Unlock()

	reply, err := v.posts.AddReply(ctx, postId, parentId, userId, text)
	if err != nil {
		v.rollback(gen, postId, func(p *model.Post) {
			p.Comments, _ = model.RemoveComment(p.Comments, placeholder.Id)
		})
		return model.Comment{}, err
	}

	v.confirm(gen, postId, placeholder.Id, reply)
	return reply, nil
}

// Delete removes the post from the view, then from the store;
// a rejected delete re-inserts it where it was
func (v *View) Delete(ctx context.Context, postId string, requesterId string) error {
	v.mu.Lock()
	i := v.find(postId)
	if i < 0 {
		v.mu.Unlock()
		return fmt.Errorf("post %s: %w", postId, model.ErrNotFound)
	}
	snapshot := v.list[i].Clone()
	gen := v.gen
	v.list = append(v.list[:i:i], v.list[i+1:]...)
	v.mu.Unlock()

	if err := v.posts.Delete(ctx, snapshot, requesterId); err != nil {
		v.reinsert(gen, i, snapshot)
		return err
	}
	return nil
}

func (v *View) find(postId string) int {
	for i := range v.list {
		if v.list[i].Id == postId {
			return i
		}
	}
	return -1
}

// rollback restores a field to its pre-mutation value, unless
// the view moved on to a newer generation meanwhile
func (v *View) rollback(gen uint64, postId string, restore func(*model.Post)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen != gen {
		return
	}
	helpers.IncrementRollbacks()
	if i := v.find(postId); i >= 0 {
		restore(&v.list[i])
	}
}

// reinsert puts a removed post back at its old position
func (v *View) reinsert(gen uint64, index int, p model.Post) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen != gen {
		return
	}
	helpers.IncrementRollbacks()
	if index > len(v.list) {
		index = len(v.list)
	}
	v.list = append(v.list[:index:index], append([]model.Post{p}, v.list[index:]...)...)
}

// confirm swaps an optimistic placeholder for the comment the
// store actually persisted
func (v *View) confirm(gen uint64, postId string, placeholderId string, confirmed model.Comment) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.gen != gen {
		return
	}
	i := v.find(postId)
	if i < 0 {
		return
	}
	if c := model.FindComment(v.list[i].Comments, placeholderId); c != nil {
		replies := c.Replies
		*c = confirmed
		c.Replies = replies
	}
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
