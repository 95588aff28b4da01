package auth

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pictura/pictura/database"
	"github.com/pictura/pictura/helpers"
	"github.com/pictura/pictura/model"
	"golang.org/x/crypto/bcrypt"
)

// profileCacheSize bounds the in-process profile cache;
// profiles change rarely but show on every rendered post
const profileCacheSize = 256

var emailCheck = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Service binds the rest of the core to one authenticated
// identity at a time and owns the users collection
type Service struct {
	Store database.DocumentStore

	cache *lru.Cache[string, model.User]

	mu       sync.Mutex
	current  model.User
	signed   bool
	watchers []func(model.User, bool)
}

// NewService creates the identity service
func NewService(store database.DocumentStore) *Service {
	cache, _ := lru.New[string, model.User](profileCacheSize)
	return &Service{Store: store, cache: cache}
}

// SignUp creates a new account and returns its user ID
func (s *Service) SignUp(ctx context.Context, email string, password string, displayName string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailCheck.MatchString(email) {
		return "", fmt.Errorf("invalid email: %w", model.ErrValidation)
	}
	if len(password) < 8 {
		return "", fmt.Errorf("weak password: %w", model.ErrValidation)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "", fmt.Errorf("display name required: %w", model.ErrValidation)
	}

	if _, err := s.userByEmail(ctx, email); err == nil {
		return "", fmt.Errorf("email already in use: %w", model.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	user := model.User{
		Id:           helpers.Generate(),
		Email:        email,
		DisplayName:  displayName,
		CreatedAt:    time.Now().UTC(),
		PasswordHash: string(hash),
	}

	if err := s.Store.Set(ctx, database.Users, user.Id, user.Data()); err != nil {
		return "", err
	}

	return user.Id, nil
}

// SignIn checks the credentials, makes the account the active
// identity and returns a session token
func (s *Service) SignIn(ctx context.Context, email string, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailCheck.MatchString(email) {
		return "", fmt.Errorf("invalid email: %w", model.ErrValidation)
	}

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", fmt.Errorf("wrong password: %w", model.ErrAuth)
	}

	token, err := helpers.CreateToken(user.Id)
	if err != nil {
		return "", err
	}

	s.setIdentity(user, true)

	return token, nil
}

// SignOut drops the active identity
func (s *Service) SignOut() {
	s.setIdentity(model.User{}, false)
}

// CurrentUser returns the active identity, if any. Mutation
// paths read it synchronously at call time, never across an
// awaited operation
func (s *Service) CurrentUser() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.signed
}

// OnChange registers a callback fired whenever the active
// identity transitions
func (s *Service) OnChange(fn func(model.User, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Identify resolves a session token to its user
func (s *Service) Identify(ctx context.Context, token string) (model.User, error) {
	uid, err := helpers.CheckToken(token)
	if err != nil {
		return model.User{}, fmt.Errorf("invalid token: %w", model.ErrAuth)
	}

	return s.User(ctx, uid)
}

// User returns a profile, served from the LRU cache when
// possible
func (s *Service) User(ctx context.Context, uid string) (model.User, error) {
	if user, ok := s.cache.Get(uid); ok {
		return user, nil
	}

	doc, err := s.Store.Get(ctx, database.Users, uid)
	if err != nil {
		return model.User{}, err
	}

	user, err := model.UserFromData(doc.Id, doc.Data)
	if err != nil {
		return model.User{}, err
	}

	s.cache.Add(uid, user)

	return user, nil
}

// UpdateProfile changes displayName, avatar or bio; only the
// owning user may do it
func (s *Service) UpdateProfile(ctx context.Context, requesterId string, uid string, body model.ProfileBody) error {
	if requesterId == "" || requesterId != uid {
		return fmt.Errorf("only the owner may edit a profile: %w", model.ErrAuth)
	}

	var ops []database.FieldOp
	if body.DisplayName != nil {
		name := strings.TrimSpace(*body.DisplayName)
		if name == "" {
			return fmt.Errorf("display name required: %w", model.ErrValidation)
		}
		ops = append(ops, database.FieldOp{Kind: database.OpSet, Field: "displayName", Value: name})
	}
	if body.PhotoUrl != nil {
		ops = append(ops, database.FieldOp{Kind: database.OpSet, Field: "photoURL", Value: *body.PhotoUrl})
	}
	if body.Bio != nil {
		ops = append(ops, database.FieldOp{Kind: database.OpSet, Field: "bio", Value: *body.Bio})
	}
	if len(ops) == 0 {
		return nil
	}

	if err := s.Store.UpdateFields(ctx, database.Users, uid, ops); err != nil {
		return err
	}

	s.cache.Remove(uid)

	return nil
}

func (s *Service) userByEmail(ctx context.Context, email string) (model.User, error) {
	docs, err := s.Store.Query(ctx, database.Query{
		Collection: database.Users,
		Filter:     &database.Filter{Field: "email", Op: database.OpEquals, Value: email},
		Limit:      1,
	})
	if err != nil {
		return model.User{}, err
	}
	if len(docs) == 0 {
		return model.User{}, fmt.Errorf("user %s: %w", email, model.ErrNotFound)
	}

	return model.UserFromData(docs[0].Id, docs[0].Data)
}

// setIdentity swaps the active identity and notifies watchers
// outside the lock
func (s *Service) setIdentity(user model.User, signed bool) {
	s.mu.Lock()
	changed := s.signed != signed || s.current.Id != user.Id
	s.current = user
	s.signed = signed
	watchers := append(([]func(model.User, bool))(nil), s.watchers...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range watchers {
		fn(user, signed)
	}
}
