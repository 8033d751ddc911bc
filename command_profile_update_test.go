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

func strPtr(s string) *string { return &s }

func TestUpdateProfileFields(t *testing.T) {
	repo := setupRepo(t)
	cred, account := seedAccount(t, repo, seedOptions{active: true, validated: true})

	handler := accounts.NewUpdateProfileHandler(repo)

	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	newsletter := true

	var resp *accounts.UpdateProfileResponse
	err := handler.Execute(context.Background(), accounts.UpdateProfileMessage{
		AccountUUID: account.AccountUUID,
		OwnerID:     cred.ID,
		FirstName:   strPtr("Grace"),
		LastName:    strPtr("Hopper"),
		Phone:       strPtr("(212) 555-0142"),
		DateOfBirth: &dob,
		Newsletter:  &newsletter,
		OnResponse:  func(r *accounts.UpdateProfileResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.Updated)
	assert.Empty(t, resp.Errors)
	require.NotNil(t, resp.Account)

	// phone is normalized to E.164 on the way in
	assert.Equal(t, "+12125550142", resp.Account.Phone)
	require.NotNil(t, resp.Account.DateOfBirth)
	assert.True(t, resp.Account.DateOfBirth.Equal(dob))
	assert.True(t, resp.Account.Newsletter)

	storedCred, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Grace", storedCred.FirstName)
	assert.Equal(t, "Hopper", storedCred.LastName)
}

func TestUpdateProfilePartial(t *testing.T) {
	repo := setupRepo(t)
	cred, account := seedAccount(t, repo, seedOptions{active: true, validated: true})

	handler := accounts.NewUpdateProfileHandler(repo)

	var resp *accounts.UpdateProfileResponse
	err := handler.Execute(context.Background(), accounts.UpdateProfileMessage{
		AccountUUID: account.AccountUUID,
		OwnerID:     cred.ID,
		FirstName:   strPtr("OnlyFirst"),
		OnResponse:  func(r *accounts.UpdateProfileResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.True(t, resp.Updated)

	storedCred, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "OnlyFirst", storedCred.FirstName)
	// untouched fields keep their values
	assert.Equal(t, "User", storedCred.LastName)
}

func TestUpdateProfileClearsAndOptsOut(t *testing.T) {
	repo := setupRepo(t)
	cred, account := seedAccount(t, repo, seedOptions{active: true, validated: true})

	handler := accounts.NewUpdateProfileHandler(repo)

	dob := time.Date(1985, 10, 26, 0, 0, 0, 0, time.UTC)
	optIn := true
	err := handler.Execute(context.Background(), accounts.UpdateProfileMessage{
		AccountUUID: account.AccountUUID,
		OwnerID:     cred.ID,
		Phone:       strPtr("+14155552671"),
		DateOfBirth: &dob,
		Newsletter:  &optIn,
	})
	require.NoError(t, err)

	// opting out and clearing the phone are zero-value writes; they must
	// persist, and fields left out of the message must keep their values
	optOut := false
	var resp *accounts.UpdateProfileResponse
	err = handler.Execute(context.Background(), accounts.UpdateProfileMessage{
		AccountUUID: account.AccountUUID,
		OwnerID:     cred.ID,
		Phone:       strPtr(""),
		Newsletter:  &optOut,
		LastName:    strPtr("Renamed"),
		OnResponse:  func(r *accounts.UpdateProfileResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.True(t, resp.Updated)
	assert.Empty(t, resp.Errors)

	stored, err := repo.Accounts().GetByAccountUUID(context.Background(), account.AccountUUID)
	require.NoError(t, err)
	assert.Equal(t, "", stored.Phone)
	assert.False(t, stored.Newsletter)
	require.NotNil(t, stored.DateOfBirth)
	assert.True(t, stored.DateOfBirth.Equal(dob))

	storedCred, err := repo.Credentials().GetByID(context.Background(), cred.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Renamed", storedCred.LastName)
	assert.Equal(t, "Test", storedCred.FirstName)
}

func TestUpdateProfileNoChanges(t *testing.T) {
	repo := setupRepo(t)
	cred, account := seedAccount(t, repo, seedOptions{active: true, validated: true})

	handler := accounts.NewUpdateProfileHandler(repo)

	var resp *accounts.UpdateProfileResponse
	err := handler.Execute(context.Background(), accounts.UpdateProfileMessage{
		AccountUUID: account.AccountUUID,
		OwnerID:     cred.ID,
		OnResponse:  func(r *accounts.UpdateProfileResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.False(t, resp.Updated)
	assert.Empty(t, resp.Errors)
}

func TestUpdateProfileInvalidPhone(t *testing.T) {
	repo := setupRepo(t)
	cred, account := seedAccount(t, repo, seedOptions{active: true, validated: true})

	handler := accounts.NewUpdateProfileHandler(repo)

	var resp *accounts.UpdateProfileResponse
	err := handler.Execute(context.Background(), accounts.UpdateProfileMessage{
		AccountUUID: account.AccountUUID,
		OwnerID:     cred.ID,
		Phone:       strPtr("not a phone number"),
		OnResponse:  func(r *accounts.UpdateProfileResponse) { resp = r },
	})
	require.NoError(t, err)

	assert.False(t, resp.Updated)
	assert.Contains(t, resp.Errors, "phone")
}

func TestUpdateProfileOwnershipMismatch(t *testing.T) {
	repo := setupRepo(t)
	_, account := seedAccount(t, repo, seedOptions{active: true, validated: true})

	handler := accounts.NewUpdateProfileHandler(repo)

	var resp *accounts.UpdateProfileResponse
	err := handler.Execute(context.Background(), accounts.UpdateProfileMessage{
		AccountUUID: account.AccountUUID,
		OwnerID:     uuid.New(),
		FirstName:   strPtr("Intruder"),
		OnResponse:  func(r *accounts.UpdateProfileResponse) { resp = r },
	})
	require.NoError(t, err)

	// same answer as a missing account, no ownership leak
	assert.False(t, resp.Updated)
	assert.Equal(t, "account not found", resp.Errors["account"])

	storedCred, err := repo.Credentials().GetByID(context.Background(), account.CredentialID.String())
	require.NoError(t, err)
	assert.NotEqual(t, "Intruder", storedCred.FirstName)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"domestic format", "(415) 555-2671", "+14155552671", false},
		{"already e164", "+14155552671", "+14155552671", false},
		{"international", "+44 20 7946 0958", "+442079460958", false},
		{"empty clears", "", "", false},
		{"garbage", "hello", "", true},
		{"too short", "123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := accounts.NormalizePhone(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
