package accounts

import "time"

// Defaults applied by NewStaticConfig when a field is left zero.
const (
	DefaultValidationTokenLength = 32
	DefaultValidationDelay       = 24 * time.Hour
	DefaultUsernameMinLength     = 4
	DefaultPasswordMinLength     = 8
	DefaultTokenExpiration       = 24
	DefaultValidationPath        = "accounts/validate"
	DefaultPasswordResetPath     = "accounts/password-reset"
)

// StaticConfig is an in-code Config implementation. Zero values fall back
// to package defaults so callers only set what they need.
type StaticConfig struct {
	SigningKey            string
	TokenExpiration       int
	Issuer                string
	Audience              []string
	ValidationTokenLength int
	ValidationDelay       time.Duration
	UsernameMinLength     int
	PasswordMinLength     int
	SiteHost              string
	ValidationPath        string
	PasswordResetPath     string
}

var _ Config = (*StaticConfig)(nil)

// NewStaticConfig fills in defaults for any unset field
func NewStaticConfig(cfg StaticConfig) *StaticConfig {
	if cfg.ValidationTokenLength == 0 {
		cfg.ValidationTokenLength = DefaultValidationTokenLength
	}
	if cfg.ValidationDelay == 0 {
		cfg.ValidationDelay = DefaultValidationDelay
	}
	if cfg.UsernameMinLength == 0 {
		cfg.UsernameMinLength = DefaultUsernameMinLength
	}
	if cfg.PasswordMinLength == 0 {
		cfg.PasswordMinLength = DefaultPasswordMinLength
	}
	if cfg.TokenExpiration == 0 {
		cfg.TokenExpiration = DefaultTokenExpiration
	}
	if cfg.ValidationPath == "" {
		cfg.ValidationPath = DefaultValidationPath
	}
	if cfg.PasswordResetPath == "" {
		cfg.PasswordResetPath = DefaultPasswordResetPath
	}
	return &cfg
}

func (c *StaticConfig) GetSigningKey() string      { return c.SigningKey }
func (c *StaticConfig) GetTokenExpiration() int    { return c.TokenExpiration }
func (c *StaticConfig) GetIssuer() string          { return c.Issuer }
func (c *StaticConfig) GetAudience() []string      { return c.Audience }
func (c *StaticConfig) GetSiteHost() string        { return c.SiteHost }
func (c *StaticConfig) GetValidationPath() string  { return c.ValidationPath }
func (c *StaticConfig) GetPasswordResetPath() string { return c.PasswordResetPath }

func (c *StaticConfig) GetValidationTokenLength() int {
	return c.ValidationTokenLength
}

func (c *StaticConfig) GetValidationDelay() time.Duration {
	return c.ValidationDelay
}

func (c *StaticConfig) GetUsernameMinLength() int {
	return c.UsernameMinLength
}

func (c *StaticConfig) GetPasswordMinLength() int {
	return c.PasswordMinLength
}
