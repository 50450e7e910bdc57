package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"apod-explorer/internal/repository"
	"apod-explorer/internal/repository/sqlite"
)

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func newTestUserService(t *testing.T) (*userService, repository.UserRepository) {
	t.Helper()
	repo := newTestRepo(t)
	return newUserService(repo, bcrypt.MinCost), repo
}

func strPtr(s string) *string { return &s }

func TestRegister_NormalizesAndHashes(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestUserService(t)

	user, err := svc.Register(ctx, "  Ana@Example.COM ", "secret1", " Ana ")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, "Ana", user.Name)
	assert.Empty(t, user.PasswordHash, "hash must not leave the service")

	stored, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRegister_SamePasswordDifferentHashes(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestUserService(t)

	_, err := svc.Register(ctx, "a@example.com", "samepass", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "b@example.com", "samepass", "")
	require.NoError(t, err)

	a, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	b, err := repo.GetByEmail(ctx, "b@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, a.PasswordHash, b.PasswordHash)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestUserService(t)

	first, err := svc.Register(ctx, "dup@example.com", "secret1", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "DUP@example.com", "another", "")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	stored, err := repo.GetByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID, "no second record may be created")
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestUserService(t)

	tests := []struct {
		name     string
		email    string
		password string
		msgs     int
	}{
		{name: "bad email", email: "not-an-email", password: "secret1", msgs: 1},
		{name: "short password", email: "ok@example.com", password: "12345", msgs: 1},
		{name: "short multibyte password", email: "ok@example.com", password: "ééé", msgs: 1},
		{name: "both", email: "", password: "", msgs: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.email, tt.password, "")
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Messages, tt.msgs)
		})
	}
}

func TestAuthenticate_NoEnumeration(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	registered, err := svc.Register(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "ANA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, wrongPassword := svc.Authenticate(ctx, "ana@example.com", "wrong-one")
	_, unknownEmail := svc.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestUpdateProfile_NameOnlyKeepsHash(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestUserService(t)

	user, err := svc.Register(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)
	before, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Name: strPtr("  Ana  ")})
	require.NoError(t, err)
	assert.Equal(t, "Ana", updated.Name)

	after, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestUpdateProfile_PasswordRehashes(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestUserService(t)

	user, err := svc.Register(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)
	before, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Password: strPtr("newsecret")})
	require.NoError(t, err)

	after, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.PasswordHash, after.PasswordHash)

	_, err = svc.Authenticate(ctx, "ana@example.com", "newsecret")
	assert.NoError(t, err)
	_, err = svc.Authenticate(ctx, "ana@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	user, err := svc.Register(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	var verr *ValidationError
	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Name: strPtr("   ")})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Password: strPtr("123")})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Password: strPtr("ééé")})
	assert.ErrorAs(t, err, &verr)

	_, err = svc.UpdateProfile(ctx, user.ID, ProfileUpdate{Password: strPtr("éééééé")})
	assert.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, "missing", ProfileUpdate{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	user, err := svc.Register(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID))
	assert.ErrorIs(t, svc.Delete(ctx, user.ID), ErrUserNotFound)

	_, err = svc.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
