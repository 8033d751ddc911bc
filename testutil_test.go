package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	accounts "github.com/solertia/go-accounts"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var dbSeq int
var dbSeqMu sync.Mutex

// setupDB opens a private in-memory database and creates the schema.
func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	dbSeqMu.Lock()
	dbSeq++
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq)
	dbSeqMu.Unlock()

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	err = db.ResetModel(context.Background(),
		(*accounts.Credential)(nil),
		(*accounts.Account)(nil),
		(*accounts.PasswordReset)(nil),
	)
	require.NoError(t, err)

	return db
}

func setupRepo(t *testing.T) accounts.RepositoryManager {
	t.Helper()
	return accounts.NewRepositoryManager(setupDB(t))
}

func testConfig() *accounts.StaticConfig {
	return accounts.NewStaticConfig(accounts.StaticConfig{
		SigningKey: "test-signing-key",
		Issuer:     "accounts-test",
		SiteHost:   "https://accounts.example.com",
	})
}

type seedOptions struct {
	email       string
	username    string
	password    string
	validated   bool
	active      bool
	superuser   bool
	token       string
	tokenExpire time.Time
}

// seedAccount inserts a credential/account pair directly through the
// repositories, bypassing the registration handler.
func seedAccount(t *testing.T, repo accounts.RepositoryManager, opts seedOptions) (*accounts.Credential, *accounts.Account) {
	t.Helper()

	ctx := context.Background()

	if opts.email == "" {
		opts.email = "user@example.com"
	}
	if opts.username == "" {
		opts.username = "testuser"
	}
	if opts.password == "" {
		opts.password = "sup3r-secret"
	}

	hash, err := accounts.HashPassword(opts.password)
	require.NoError(t, err)

	cred, err := repo.Credentials().Create(ctx, &accounts.Credential{
		Username:     opts.username,
		Email:        opts.email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: hash,
		IsActive:     opts.active,
		IsSuperuser:  opts.superuser,
	})
	require.NoError(t, err)

	account := &accounts.Account{
		CredentialID:   cred.ID,
		EmailValidated: opts.validated,
		IsActive:       opts.active,
	}
	if opts.token != "" {
		account.EmailValidationToken = &opts.token
		expire := opts.tokenExpire
		if expire.IsZero() {
			expire = time.Now().Add(time.Hour)
		}
		account.ValidationTokenExpire = &expire
	}

	account, err = repo.Accounts().Create(ctx, account)
	require.NoError(t, err)

	return cred, account
}

// captureSink records activity events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (c *captureSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) Events() []accounts.ActivityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]accounts.ActivityEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureSink) Verbs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	verbs := make([]string, 0, len(c.events))
	for _, e := range c.events {
		verbs = append(verbs, string(e.EventType))
	}
	return verbs
}

// captureNotifier records notifications instead of delivering them.
type captureNotifier struct {
	mu       sync.Mutex
	messages []accounts.Notification
	fail     bool
}

func (c *captureNotifier) Send(_ context.Context, msg accounts.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("delivery refused")
	}
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureNotifier) Messages() []accounts.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]accounts.Notification, len(c.messages))
	copy(out, c.messages)
	return out
}
