package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/solertia/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializePasswordReset(t *testing.T) {
	repo := setupRepo(t)
	cred, _ := seedAccount(t, repo, seedOptions{active: true, validated: true})

	notifier := &captureNotifier{}
	handler := accounts.NewInitializePasswordResetHandler(repo, testConfig()).
		WithNotifier(notifier)

	var resp *accounts.InitializePasswordResetResponse
	err := handler.Execute(context.Background(), accounts.InitializePasswordResetMessage{
		Email:      cred.Email,
		OnResponse: func(r *accounts.InitializePasswordResetResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.EmailSent)
	require.NotNil(t, resp.Reset)
	assert.Equal(t, accounts.ResetRequestedStatus, resp.Reset.Status)
	require.NotNil(t, resp.Reset.CredentialID)
	assert.Equal(t, cred.ID, *resp.Reset.CredentialID)

	msgs := notifier.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, accounts.PasswordResetMailTemplate, msgs[0].TemplateName)
	assert.Equal(t, cred.Email, msgs[0].Recipient)
	assert.Contains(t, msgs[0].Context["reset_url"], resp.Reset.ID.String())
}

func TestInitializePasswordResetUnknownEmail(t *testing.T) {
	repo := setupRepo(t)

	notifier := &captureNotifier{}
	handler := accounts.NewInitializePasswordResetHandler(repo, testConfig()).
		WithNotifier(notifier)

	var resp *accounts.InitializePasswordResetResponse
	err := handler.Execute(context.Background(), accounts.InitializePasswordResetMessage{
		Email:      "nobody@example.com",
		OnResponse: func(r *accounts.InitializePasswordResetResponse) { resp = r },
	})
	require.NoError(t, err)

	// same outcome as a known address, but no record and no mail
	assert.True(t, resp.EmailSent)
	assert.Nil(t, resp.Reset)
	assert.Empty(t, notifier.Messages())
}

func TestFinalizePasswordReset(t *testing.T) {
	repo := setupRepo(t)
	cred, _ := seedAccount(t, repo, seedOptions{password: "old-password-123", active: true, validated: true})

	reset, err := repo.PasswordResets().Create(context.Background(), &accounts.PasswordReset{
		CredentialID: &cred.ID,
		Email:        cred.Email,
		Status:       accounts.ResetRequestedStatus,
	})
	require.NoError(t, err)

	sink := &captureSink{}
	handler := accounts.NewFinalizePasswordResetHandler(repo).WithActivitySink(sink)

	err = handler.Execute(context.Background(), accounts.FinalizePasswordResetMessage{
		Session:  reset.ID.String(),
		Password: "brand-new-password",
	})
	require.NoError(t, err)

	stored, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.NoError(t, accounts.ComparePasswordAndHash("brand-new-password", stored.PasswordHash))

	used, err := repo.PasswordResets().GetByID(context.Background(), reset.ID.String())
	require.NoError(t, err)
	assert.Equal(t, accounts.ResetChangedStatus, used.Status)
	assert.NotNil(t, used.ResetAt)
	// closing the request only touches status and reset_at
	assert.Equal(t, cred.Email, used.Email)
	require.NotNil(t, used.CredentialID)
	assert.Equal(t, cred.ID, *used.CredentialID)

	assert.Contains(t, sink.Verbs(), string(accounts.ActivityEventPasswordResetSuccess))
}

func TestFinalizePasswordResetSingleUse(t *testing.T) {
	repo := setupRepo(t)
	cred, _ := seedAccount(t, repo, seedOptions{active: true, validated: true})

	reset, err := repo.PasswordResets().Create(context.Background(), &accounts.PasswordReset{
		CredentialID: &cred.ID,
		Email:        cred.Email,
		Status:       accounts.ResetRequestedStatus,
	})
	require.NoError(t, err)

	handler := accounts.NewFinalizePasswordResetHandler(repo)

	err = handler.Execute(context.Background(), accounts.FinalizePasswordResetMessage{
		Session:  reset.ID.String(),
		Password: "first-new-password",
	})
	require.NoError(t, err)

	err = handler.Execute(context.Background(), accounts.FinalizePasswordResetMessage{
		Session:  reset.ID.String(),
		Password: "second-new-password",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeTokenAlreadyUsed, richErr.TextCode)

	// the first rotation stands
	stored, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.NoError(t, accounts.ComparePasswordAndHash("first-new-password", stored.PasswordHash))
}

func TestFinalizePasswordResetExpired(t *testing.T) {
	repo := setupRepo(t)
	cred, _ := seedAccount(t, repo, seedOptions{password: "old-password-123", active: true, validated: true})

	stale := time.Now().Add(-48 * time.Hour)
	reset, err := repo.PasswordResets().Create(context.Background(), &accounts.PasswordReset{
		CredentialID: &cred.ID,
		Email:        cred.Email,
		Status:       accounts.ResetRequestedStatus,
		CreatedAt:    &stale,
	})
	require.NoError(t, err)

	handler := accounts.NewFinalizePasswordResetHandler(repo)

	err = handler.Execute(context.Background(), accounts.FinalizePasswordResetMessage{
		Session:  reset.ID.String(),
		Password: "brand-new-password",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeTokenExpired, richErr.TextCode)

	// the password did not move
	stored, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.NoError(t, accounts.ComparePasswordAndHash("old-password-123", stored.PasswordHash))
}

func TestFinalizePasswordResetUnknownSession(t *testing.T) {
	repo := setupRepo(t)
	handler := accounts.NewFinalizePasswordResetHandler(repo)

	err := handler.Execute(context.Background(), accounts.FinalizePasswordResetMessage{
		Session:  "00000000-0000-0000-0000-000000000000",
		Password: "brand-new-password",
	})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryNotFound, richErr.Category)
}
