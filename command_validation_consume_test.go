package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/solertia/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationConsumeActivatesAccount(t *testing.T) {
	repo := setupRepo(t)
	cred, account := seedAccount(t, repo, seedOptions{token: "valid-token"})

	sink := &captureSink{}
	handler := accounts.NewValidationConsumeHandler(repo).WithActivitySink(sink)

	var resp *accounts.ValidationConsumeResponse
	err := handler.Execute(context.Background(), accounts.ValidationConsumeMessage{
		AccountUUID: account.AccountUUID,
		Token:       "valid-token",
		OnResponse:  func(r *accounts.ValidationConsumeResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.Validated)
	assert.Equal(t, accounts.ValidationMsgValidated, resp.Message)
	require.NotNil(t, resp.Account)
	assert.True(t, resp.Account.EmailValidated)
	assert.True(t, resp.Account.IsActive)
	assert.Nil(t, resp.Account.EmailValidationToken)

	// both halves of the pair activate together
	storedCred, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.True(t, storedCred.IsActive)

	assert.Contains(t, sink.Verbs(), string(accounts.ActivityEventValidationConsumed))
}

func TestValidationConsumeWrongToken(t *testing.T) {
	repo := setupRepo(t)
	_, account := seedAccount(t, repo, seedOptions{token: "valid-token"})

	handler := accounts.NewValidationConsumeHandler(repo)

	var resp *accounts.ValidationConsumeResponse
	err := handler.Execute(context.Background(), accounts.ValidationConsumeMessage{
		AccountUUID: account.AccountUUID,
		Token:       "wrong-token",
		OnResponse:  func(r *accounts.ValidationConsumeResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.False(t, resp.Validated)
	assert.Equal(t, accounts.ValidationMsgInvalid, resp.Message)

	stored, err := repo.Accounts().GetByAccountUUID(context.Background(), account.AccountUUID)
	require.NoError(t, err)
	assert.False(t, stored.EmailValidated)
	assert.False(t, stored.IsActive)
}

func TestValidationConsumeUnknownAccount(t *testing.T) {
	repo := setupRepo(t)
	handler := accounts.NewValidationConsumeHandler(repo)

	var resp *accounts.ValidationConsumeResponse
	err := handler.Execute(context.Background(), accounts.ValidationConsumeMessage{
		AccountUUID: uuid.New(),
		Token:       "whatever",
		OnResponse:  func(r *accounts.ValidationConsumeResponse) { resp = r },
	})
	require.NoError(t, err)

	// indistinguishable from a bad token
	assert.False(t, resp.Validated)
	assert.Equal(t, accounts.ValidationMsgInvalid, resp.Message)
}

func TestValidationConsumeMissingInput(t *testing.T) {
	repo := setupRepo(t)
	handler := accounts.NewValidationConsumeHandler(repo)

	tests := []struct {
		name string
		msg  accounts.ValidationConsumeMessage
	}{
		{"nil account uuid", accounts.ValidationConsumeMessage{Token: "tok"}},
		{"empty token", accounts.ValidationConsumeMessage{AccountUUID: uuid.New()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *accounts.ValidationConsumeResponse
			tt.msg.OnResponse = func(r *accounts.ValidationConsumeResponse) { resp = r }

			err := handler.Execute(context.Background(), tt.msg)
			require.NoError(t, err)

			assert.False(t, resp.Validated)
			assert.Equal(t, accounts.ValidationMsgMissing, resp.Message)
		})
	}
}

func TestValidationConsumeExpiredToken(t *testing.T) {
	repo := setupRepo(t)
	expire := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, account := seedAccount(t, repo, seedOptions{token: "stale-token", tokenExpire: expire})

	handler := accounts.NewValidationConsumeHandler(repo).
		WithClock(func() time.Time { return expire.Add(time.Second) })

	var resp *accounts.ValidationConsumeResponse
	err := handler.Execute(context.Background(), accounts.ValidationConsumeMessage{
		AccountUUID: account.AccountUUID,
		Token:       "stale-token",
		OnResponse:  func(r *accounts.ValidationConsumeResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.False(t, resp.Validated)
	assert.Equal(t, accounts.ValidationMsgExpired, resp.Message)

	// nothing changed and the stale token is still in place for a resend
	stored, err := repo.Accounts().GetByAccountUUID(context.Background(), account.AccountUUID)
	require.NoError(t, err)
	assert.False(t, stored.EmailValidated)
	assert.False(t, stored.IsActive)
	require.NotNil(t, stored.EmailValidationToken)
	assert.Equal(t, "stale-token", *stored.EmailValidationToken)
}

func TestValidationConsumeAtExpiryInstant(t *testing.T) {
	repo := setupRepo(t)
	expire := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, account := seedAccount(t, repo, seedOptions{token: "edge-token", tokenExpire: expire})

	handler := accounts.NewValidationConsumeHandler(repo).
		WithClock(func() time.Time { return expire })

	var resp *accounts.ValidationConsumeResponse
	err := handler.Execute(context.Background(), accounts.ValidationConsumeMessage{
		AccountUUID: account.AccountUUID,
		Token:       "edge-token",
		OnResponse:  func(r *accounts.ValidationConsumeResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.True(t, resp.Validated)
	assert.Equal(t, accounts.ValidationMsgValidated, resp.Message)
}

func TestValidationConsumeTwiceIsIdempotent(t *testing.T) {
	repo := setupRepo(t)
	_, account := seedAccount(t, repo, seedOptions{token: "once-token"})

	handler := accounts.NewValidationConsumeHandler(repo)

	consume := func() *accounts.ValidationConsumeResponse {
		var resp *accounts.ValidationConsumeResponse
		err := handler.Execute(context.Background(), accounts.ValidationConsumeMessage{
			AccountUUID: account.AccountUUID,
			Token:       "once-token",
			OnResponse:  func(r *accounts.ValidationConsumeResponse) { resp = r },
		})
		require.NoError(t, err)
		return resp
	}

	first := consume()
	assert.True(t, first.Validated)

	second := consume()
	assert.False(t, second.Validated)
	assert.True(t, second.AlreadyValidated)

	// the account stays validated and active
	stored, err := repo.Accounts().GetByAccountUUID(context.Background(), account.AccountUUID)
	require.NoError(t, err)
	assert.True(t, stored.EmailValidated)
	assert.True(t, stored.IsActive)
}
