package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/solertia/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePasswordRotatesHash(t *testing.T) {
	repo := setupRepo(t)
	cred, _ := seedAccount(t, repo, seedOptions{password: "old-password-123", active: true})

	sink := &captureSink{}
	handler := accounts.NewChangePasswordHandler(repo, testConfig()).
		WithActivitySink(sink)

	var resp *accounts.ChangePasswordResponse
	err := handler.Execute(context.Background(), accounts.ChangePasswordMessage{
		Identifier:         cred.Email,
		CurrentPassword:    "old-password-123",
		NewPassword:        "new-password-456",
		NewPasswordConfirm: "new-password-456",
		OnResponse:         func(r *accounts.ChangePasswordResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.Changed)
	assert.Empty(t, resp.Errors)
	assert.Contains(t, sink.Verbs(), string(accounts.ActivityEventPasswordChanged))

	stored, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.Error(t, accounts.ComparePasswordAndHash("old-password-123", stored.PasswordHash))
	assert.NoError(t, accounts.ComparePasswordAndHash("new-password-456", stored.PasswordHash))
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	repo := setupRepo(t)
	cred, _ := seedAccount(t, repo, seedOptions{password: "old-password-123", active: true})

	handler := accounts.NewChangePasswordHandler(repo, testConfig())

	var resp *accounts.ChangePasswordResponse
	err := handler.Execute(context.Background(), accounts.ChangePasswordMessage{
		Identifier:         cred.Email,
		CurrentPassword:    "not-the-password",
		NewPassword:        "new-password-456",
		NewPasswordConfirm: "new-password-456",
		OnResponse:         func(r *accounts.ChangePasswordResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.False(t, resp.Changed)
	assert.Contains(t, resp.Errors, "current_password")

	// old password still works
	stored, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.NoError(t, accounts.ComparePasswordAndHash("old-password-123", stored.PasswordHash))
}

func TestChangePasswordValidation(t *testing.T) {
	repo := setupRepo(t)
	cred, _ := seedAccount(t, repo, seedOptions{password: "old-password-123", active: true})

	handler := accounts.NewChangePasswordHandler(repo, testConfig())

	tests := []struct {
		name      string
		msg       accounts.ChangePasswordMessage
		wantField string
	}{
		{
			name: "new password too short",
			msg: accounts.ChangePasswordMessage{
				Identifier:         cred.Email,
				CurrentPassword:    "old-password-123",
				NewPassword:        "short",
				NewPasswordConfirm: "short",
			},
			wantField: "new_password",
		},
		{
			name: "confirmation mismatch",
			msg: accounts.ChangePasswordMessage{
				Identifier:         cred.Email,
				CurrentPassword:    "old-password-123",
				NewPassword:        "new-password-456",
				NewPasswordConfirm: "other-password-789",
			},
			wantField: "new_password_confirm",
		},
		{
			name: "missing identifier",
			msg: accounts.ChangePasswordMessage{
				CurrentPassword:    "old-password-123",
				NewPassword:        "new-password-456",
				NewPasswordConfirm: "new-password-456",
			},
			wantField: "identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *accounts.ChangePasswordResponse
			tt.msg.OnResponse = func(r *accounts.ChangePasswordResponse) { resp = r }

			err := handler.Execute(context.Background(), tt.msg)
			require.NoError(t, err)

			assert.False(t, resp.Changed)
			assert.Contains(t, resp.Errors, tt.wantField)
		})
	}
}

func TestChangePasswordUnknownCredential(t *testing.T) {
	repo := setupRepo(t)
	handler := accounts.NewChangePasswordHandler(repo, testConfig())

	err := handler.Execute(context.Background(), accounts.ChangePasswordMessage{
		Identifier:         "ghost@example.com",
		CurrentPassword:    "whatever-password",
		NewPassword:        "new-password-456",
		NewPasswordConfirm: "new-password-456",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryNotFound, richErr.Category)
}
