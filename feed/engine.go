package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pictura/pictura/database"
	"github.com/pictura/pictura/helpers"
	"github.com/pictura/pictura/model"
)

// DefaultPageSize is how many posts a global feed page holds
const DefaultPageSize = 5

// firstPageTTL is how long the cached global first page stays
// valid, in seconds
const firstPageTTL = 30

// Filter kinds
const (
	KindGlobal = iota
	KindAuthor
	KindSaved
)

// Filter scopes a feed to one of the three views
type Filter struct {
	Kind int
	// User is the author for KindAuthor, the saver for KindSaved
	User string
}

// Engine produces a restartable sequence of posts ordered by
// (createdAt desc, id desc), in fixed-size pages. The cursor is
// keyed on the sort value of the last returned post, never on
// an offset, so pages fetched after intervening writes cannot
// duplicate or skip posts that existed at the first page
type Engine struct {
	Store database.DocumentStore
	// Cache holds the serialized global first page; nil
	// disables caching
	Cache    *memcache.Client
	PageSize int
}

// NewEngine creates a feed engine with the default page size
func NewEngine(store database.DocumentStore, cache *memcache.Client) *Engine {
	return &Engine{Store: store, Cache: cache, PageSize: DefaultPageSize}
}

// FirstPage returns the newest posts of the filtered feed and
// the cursor for the next page. Owner-scoped and save-scoped
// feeds are served as one unbounded page
func (e *Engine) FirstPage(ctx context.Context, f Filter) ([]model.Post, model.Cursor, error) {
	if f.Kind == KindGlobal {
		if page, ok := e.cachedFirstPage(); ok {
			helpers.IncrementFeedPages()
			return page.Posts, page.Cursor, nil
		}
	}

	posts, cursor, err := e.page(ctx, f, model.Cursor{})
	if err != nil {
		return nil, model.Cursor{}, err
	}

	if f.Kind == KindGlobal {
		e.cacheFirstPage(posts, cursor)
	}

	return posts, cursor, nil
}

// NextPage returns the page strictly after the cursor. Fails
// with ErrExhausted once HasMore went false
func (e *Engine) NextPage(ctx context.Context, f Filter, cursor model.Cursor) ([]model.Post, model.Cursor, error) {
	if !cursor.HasMore {
		return nil, cursor, model.ErrExhausted
	}

	return e.page(ctx, f, cursor)
}

func (e *Engine) page(ctx context.Context, f Filter, after model.Cursor) ([]model.Post, model.Cursor, error) {
	q := database.Query{
		Collection:     database.Posts,
		StartAfterTime: after.LastCreatedAt,
		StartAfterId:   after.LastId,
	}

	switch f.Kind {
	case KindGlobal:
		q.Limit = e.PageSize
	case KindAuthor:
		q.Filter = &database.Filter{Field: "userId", Op: database.OpEquals, Value: f.User}
	case KindSaved:
		q.Filter = &database.Filter{Field: "saves", Op: database.OpArrayContains, Value: f.User}
	default:
		return nil, model.Cursor{}, fmt.Errorf("unknown feed kind %d: %w", f.Kind, model.ErrValidation)
	}

	docs, err := e.Store.Query(ctx, q)
	if err != nil {
		return nil, model.Cursor{}, err
	}

	posts := make([]model.Post, 0, len(docs))
	for _, doc := range docs {
		post, err := model.PostFromData(doc.Id, doc.Data)
		if err != nil {
			// Legacy malformed documents are skipped, not fatal
			log.Printf("skipping malformed post %s: %v", doc.Id, err)
			continue
		}
		posts = append(posts, post)
	}

	helpers.IncrementFeedPages()

	return posts, cursorFor(docs, q.Limit), nil
}

// cursorFor marks the last returned document; a short page
// means the feed is exhausted. Exhaustion is decided on the raw
// documents, skipped or not: a malformed document inside a full
// page must not cut the feed short and strand the older posts
// behind it
func cursorFor(docs []database.Document, limit int) model.Cursor {
	if limit <= 0 || len(docs) < limit {
		return model.Cursor{HasMore: false}
	}

	last := docs[len(docs)-1]
	return model.Cursor{
		LastCreatedAt: docCreatedAt(last.Data),
		LastId:        last.Id,
		HasMore:       true,
	}
}

// docCreatedAt reads the sort key of a raw document; store
// implementations keep it as time.Time or unix milliseconds
func docCreatedAt(data map[string]any) time.Time {
	switch t := data["createdAt"].(type) {
	case time.Time:
		return t
	case int64:
		return time.UnixMilli(t).UTC()
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	default:
		return time.Time{}
	}
}

// InvalidateFirstPage drops the cached global first page; the
// post service calls it whenever the newest-post set changes
func InvalidateFirstPage(cache *memcache.Client) {
	database.CacheDelete(cache, database.FeedCacheKey)
}

// cachedPage is the global first page plus its cursor, kept
// together so a cache hit cannot misreport exhaustion
type cachedPage struct {
	Posts  []model.Post `json:"posts"`
	Cursor model.Cursor `json:"cursor"`
}

func (e *Engine) cachedFirstPage() (cachedPage, bool) {
	raw, ok := database.CacheGet(e.Cache, database.FeedCacheKey)
	if !ok {
		return cachedPage{}, false
	}

	var page cachedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return cachedPage{}, false
	}

	return page, true
}

func (e *Engine) cacheFirstPage(posts []model.Post, cursor model.Cursor) {
	if e.Cache == nil {
		return
	}

	encoded, err := json.Marshal(cachedPage{Posts: posts, Cursor: cursor})
	if err != nil {
		return
	}

	database.CacheSet(e.Cache, database.FeedCacheKey, encoded, firstPageTTL)
}
