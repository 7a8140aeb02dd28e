package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-sync/internal/repository"
)

func newAuthService(t *testing.T) *AuthService {
	return NewAuthService(repository.NewUserRepository(newTestDB(t)))
}

func TestAuthService_Signup(t *testing.T) {
	svc := newAuthService(t)

	user, err := svc.Signup(SignupInput{Username: "  alice  ", Password: "supersecret"})

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "supersecret", user.PasswordHash)
}

func TestAuthService_SignupRejects(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Signup(SignupInput{Username: "taken", Password: "supersecret"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input SignupInput
		want  error
	}{
		{"short username", SignupInput{Username: "ab", Password: "supersecret"}, ErrInvalidUsername},
		{"long username", SignupInput{Username: strings.Repeat("a", 51), Password: "supersecret"}, ErrInvalidUsername},
		{"short password", SignupInput{Username: "bob", Password: "short"}, ErrPasswordTooShort},
		{"duplicate", SignupInput{Username: "taken", Password: "supersecret"}, ErrUsernameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	svc := newAuthService(t)
	created, err := svc.Signup(SignupInput{Username: "alice", Password: "supersecret"})
	require.NoError(t, err)

	user, err := svc.Login(LoginInput{Username: "alice", Password: "supersecret"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Login(LoginInput{Username: "alice", Password: "wrongpassword"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(LoginInput{Username: "nobody", Password: "supersecret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_GetUser(t *testing.T) {
	svc := newAuthService(t)
	created, err := svc.Signup(SignupInput{Username: "alice", Password: "supersecret"})
	require.NoError(t, err)

	user, err := svc.GetUser(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.GetUser(created.ID + 100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
