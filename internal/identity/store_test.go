package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/askd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T, mirror Persister) *Store {
	t.Helper()
	s, err := NewStore(mirror, WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	return s
}

func newUsersMirror(t *testing.T) *store.Mirror {
	t.Helper()
	mirror, _ := newUsersMirrorAt(t)
	return mirror
}

func newUsersMirrorAt(t *testing.T) (*store.Mirror, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	backend, err := store.NewFileBackend(map[string]string{store.DocUsers: path})
	require.NoError(t, err)
	return store.NewMirror(backend, store.DocUsers, nil), path
}

func TestRegister_StoresSlowHash(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "secret1"))

	ident := s.Get("alice")
	require.NotNil(t, ident)
	assert.NotEqual(t, "secret1", ident.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte("secret1")))
	assert.Empty(t, ident.Sessions)
}

func TestRegister_DuplicateLeavesIdentityUnchanged(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "secret1"))
	sid, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	before := s.Get("alice")

	err = s.Register(ctx, "alice", "other-password")
	assert.ErrorIs(t, err, ErrDuplicateUser)

	after := s.Get("alice")
	assert.Equal(t, before, after)
	assert.Equal(t, []string{sid}, after.Sessions)
}

func TestRegister_UsernamesAreCaseSensitive(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, s.Register(ctx, "alice", "pw"))
	require.NoError(t, s.Register(ctx, "Alice", "pw"))
	assert.Equal(t, []string{"Alice", "alice"}, s.Usernames())
}

func TestAuthenticate_FailuresAreIndistinguishable(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "alice", "secret1"))

	_, wrongPassword := s.Authenticate(ctx, "alice", "nope")
	_, unknownUser := s.Authenticate(ctx, "mallory", "secret1")

	require.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Empty(t, s.Get("alice").Sessions)
}

func TestAuthenticate_IssuesUniqueSessions(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "alice", "secret1"))

	first, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)
	second, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, first, 36, "expected canonical UUID text form")
	assert.ElementsMatch(t, []string{first, second}, s.Get("alice").Sessions)
}

func TestResolveAndRevoke(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, s.Register(ctx, "alice", "secret1"))
	sid, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)

	user, ok := s.Resolve(sid)
	assert.True(t, ok)
	assert.Equal(t, "alice", user)

	assert.True(t, s.Revoke(ctx, "alice", sid))
	_, ok = s.Resolve(sid)
	assert.False(t, ok)

	assert.False(t, s.Revoke(ctx, "alice", sid), "second revoke is a no-op")
	assert.False(t, s.Revoke(ctx, "ghost", sid))
}

func TestResolve_EmptyAndUnknown(t *testing.T) {
	s := newTestStore(t, nil)

	_, ok := s.Resolve("")
	assert.False(t, ok)
	_, ok = s.Resolve("00000000-0000-0000-0000-000000000000")
	assert.False(t, ok)
}

func TestLoadOrSeed_SeedsAdminWhenAbsent(t *testing.T) {
	mirror, path := newUsersMirrorAt(t)
	s := newTestStore(t, mirror)
	ctx := context.Background()

	require.NoError(t, s.LoadOrSeed(ctx, "admin123"))
	assert.Equal(t, []string{AdminUsername}, s.Usernames())
	assert.FileExists(t, path)

	_, err := s.Authenticate(ctx, AdminUsername, "admin123")
	assert.NoError(t, err)
}

func TestLoadOrSeed_KeepsUnreadableDocument(t *testing.T) {
	mirror, path := newUsersMirrorAt(t)
	corrupt := []byte(`{"alice": {"password_hash": "$2a$04$`)
	require.NoError(t, os.WriteFile(path, corrupt, 0o600))

	s := newTestStore(t, mirror)
	require.NoError(t, s.LoadOrSeed(context.Background(), "admin123"))
	assert.Equal(t, []string{AdminUsername}, s.Usernames())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, onDisk)
}

type failingPersister struct {
	err   error
	saves int
}

func (p *failingPersister) Save(context.Context, any) bool {
	p.saves++
	return true
}

func (p *failingPersister) Decode(context.Context, any) error {
	return p.err
}

func TestLoadOrSeed_ReadErrorDoesNotPersist(t *testing.T) {
	p := &failingPersister{err: errors.New("connection refused")}
	s := newTestStore(t, p)

	require.NoError(t, s.LoadOrSeed(context.Background(), "admin123"))
	assert.Equal(t, 0, p.saves)

	p.err = store.ErrNotFound
	require.NoError(t, s.LoadOrSeed(context.Background(), "admin123"))
	assert.Equal(t, 1, p.saves)
}

func TestLoadOrSeed_RestoresPersistedIdentities(t *testing.T) {
	mirror := newUsersMirror(t)
	ctx := context.Background()

	s := newTestStore(t, mirror)
	require.NoError(t, s.LoadOrSeed(ctx, "admin123"))
	require.NoError(t, s.Register(ctx, "alice", "secret1"))
	sid, err := s.Authenticate(ctx, "alice", "secret1")
	require.NoError(t, err)

	restored := newTestStore(t, mirror)
	require.NoError(t, restored.LoadOrSeed(ctx, "ignored"))

	assert.Equal(t, []string{"admin", "alice"}, restored.Usernames())
	user, ok := restored.Resolve(sid)
	assert.True(t, ok)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "alice", restored.Get("alice").Username)
}
