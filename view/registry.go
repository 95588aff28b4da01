package view

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pictura/pictura/database"
	"github.com/pictura/pictura/feed"
	"github.com/pictura/pictura/model"
	"github.com/pictura/pictura/post"
	"github.com/robfig/cron/v3"
)

// sessionIdle is how long a session's views survive without
// being read
const sessionIdle = 30 * time.Minute

// Session groups the three views one signed-in user browses
type Session struct {
	Global *View
	Mine   *View
	Saved  *View

	lastSeen time.Time
}

// Registry owns the per-user sessions and reacts to post
// lifecycle messages
type Registry struct {
	engine *feed.Engine
	posts  *post.Service
	cache  *memcache.Client

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry
func NewRegistry(engine *feed.Engine, posts *post.Service, cache *memcache.Client) *Registry {
	return &Registry{
		engine:   engine,
		posts:    posts,
		cache:    cache,
		sessions: make(map[string]*Session),
	}
}

// Session returns the user's views, creating them on first use
func (r *Registry) Session(user string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[user]
	if !ok {
		s = &Session{
			Global: New(Global, user, r.engine, r.posts),
			Mine:   New(Mine, user, r.engine, r.posts),
			Saved:  New(Saved, user, r.engine, r.posts),
		}
		r.sessions[user] = s
	}
	s.lastSeen = time.Now()

	return s
}

// Drop disposes a user's views, on sign-out
func (r *Registry) Drop(user string) {
	r.mu.Lock()
	s, ok := r.sessions[user]
	delete(r.sessions, user)
	r.mu.Unlock()

	if ok {
		s.Global.Dispose()
		s.Mine.Dispose()
		s.Saved.Dispose()
	}
}

// HandlePostEvent reacts to messages on the posts subject. A
// new post is always the most recent one, so affected views
// reset to their first page instead of appending. Deletes do
// not propagate to other views; they re-synchronize on their
// own next fetch
func (r *Registry) HandlePostEvent(msg model.Message) {
	database.CacheDelete(r.cache, database.FeedCacheKey)

	if msg.Type != model.MessagePostCreated {
		return
	}

	r.mu.Lock()
	sessions := make(map[string]*Session, len(r.sessions))
	for user, s := range r.sessions {
		sessions[user] = s
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), database.Timeout)
	defer cancel()

	for user, s := range sessions {
		if err := s.Global.Reset(ctx); err != nil {
			log.Printf("feed reset for %s: %v", user, err)
		}
		if user == msg.From {
			if err := s.Mine.Reset(ctx); err != nil {
				log.Printf("my-posts reset for %s: %v", user, err)
			}
		}
	}
}

// Sweep drops sessions nobody read lately
func (r *Registry) Sweep() {
	r.mu.Lock()
	var idle []string
	for user, s := range r.sessions {
		if time.Since(s.lastSeen) > sessionIdle {
			idle = append(idle, user)
		}
	}
	r.mu.Unlock()

	for _, user := range idle {
		r.Drop(user)
	}
}

// StartSweeper schedules the idle-session sweep
func (r *Registry) StartSweeper(c *cron.Cron) {
	c.AddFunc("@every 10m", r.Sweep)
}
