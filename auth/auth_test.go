package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/pictura/pictura/database"
	"github.com/pictura/pictura/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setTestKeys generates a throwaway RSA pair for token tests
func setTestKeys(t *testing.T) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	private := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	public, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPem := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: public,
	})

	t.Setenv("RSA_PRIVATE_KEY", string(private))
	t.Setenv("RSA_PUBLIC_KEY", string(publicPem))
}

func newTestAuth() *Service {
	return NewService(database.NewMemory())
}

func TestSignUpValidation(t *testing.T) {
	s := newTestAuth()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "not-an-email", "longenough", "Alice")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.SignUp(ctx, "alice@example.com", "short", "Alice")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.SignUp(ctx, "alice@example.com", "longenough", "   ")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	s := newTestAuth()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice@example.com", "longenough", "Alice")
	require.NoError(t, err)

	_, err = s.SignUp(ctx, "Alice@Example.com", "longenough", "Alice Again")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestSignInRoundTrip(t *testing.T) {
	setTestKeys(t)
	s := newTestAuth()
	ctx := context.Background()

	uid, err := s.SignUp(ctx, "alice@example.com", "longenough", "Alice")
	require.NoError(t, err)

	token, err := s.SignIn(ctx, "alice@example.com", "longenough")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	current, signed := s.CurrentUser()
	assert.True(t, signed)
	assert.Equal(t, uid, current.Id)

	identified, err := s.Identify(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uid, identified.Id)
	assert.Equal(t, "Alice", identified.DisplayName)
}

func TestSignInWrongPassword(t *testing.T) {
	setTestKeys(t)
	s := newTestAuth()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice@example.com", "longenough", "Alice")
	require.NoError(t, err)

	_, err = s.SignIn(ctx, "alice@example.com", "wrongwrong")
	assert.ErrorIs(t, err, model.ErrAuth)

	_, signed := s.CurrentUser()
	assert.False(t, signed)
}

func TestSignInUnknownEmail(t *testing.T) {
	s := newTestAuth()

	_, err := s.SignIn(context.Background(), "ghost@example.com", "longenough")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestIdentifyRejectsGarbageToken(t *testing.T) {
	setTestKeys(t)
	s := newTestAuth()

	_, err := s.Identify(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, model.ErrAuth)
}

func TestSignOutNotifiesWatchers(t *testing.T) {
	setTestKeys(t)
	s := newTestAuth()
	ctx := context.Background()

	_, err := s.SignUp(ctx, "alice@example.com", "longenough", "Alice")
	require.NoError(t, err)

	var transitions []bool
	s.OnChange(func(_ model.User, signed bool) {
		transitions = append(transitions, signed)
	})

	_, err = s.SignIn(ctx, "alice@example.com", "longenough")
	require.NoError(t, err)
	s.SignOut()

	assert.Equal(t, []bool{true, false}, transitions)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestAuth()
	ctx := context.Background()

	uid, err := s.SignUp(ctx, "alice@example.com", "longenough", "Alice")
	require.NoError(t, err)

	name := "Alice B."
	bio := "photographer"
	err = s.UpdateProfile(ctx, uid, uid, model.ProfileBody{DisplayName: &name, Bio: &bio})
	require.NoError(t, err)

	user, err := s.User(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", user.DisplayName)
	assert.Equal(t, "photographer", user.Bio)
}

func TestUpdateProfileOwnerOnly(t *testing.T) {
	s := newTestAuth()
	ctx := context.Background()

	uid, err := s.SignUp(ctx, "alice@example.com", "longenough", "Alice")
	require.NoError(t, err)

	name := "Mallory"
	err = s.UpdateProfile(ctx, "someone-else", uid, model.ProfileBody{DisplayName: &name})
	assert.ErrorIs(t, err, model.ErrAuth)
}

func TestUserIsCached(t *testing.T) {
	store := database.NewMemory()
	s := NewService(store)
	ctx := context.Background()

	uid, err := s.SignUp(ctx, "alice@example.com", "longenough", "Alice")
	require.NoError(t, err)

	_, err = s.User(ctx, uid)
	require.NoError(t, err)

	// The cached profile survives even a store-level delete
	require.NoError(t, store.Delete(ctx, database.Users, uid))
	user, err := s.User(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName)
}
