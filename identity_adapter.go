package accounts

// CredentialIdentity adapts a Credential into the Identity interface for
// token generation.
type CredentialIdentity struct {
	cred *Credential
}

// NewIdentityFromCredential returns an Identity adapter for the provided
// credential.
func NewIdentityFromCredential(cred *Credential) Identity {
	if cred == nil {
		return nil
	}
	return CredentialIdentity{cred: cred}
}

// ID returns the credential's ID as a string.
func (c CredentialIdentity) ID() string {
	if c.cred == nil {
		return ""
	}
	return c.cred.ID.String()
}

// Username returns the credential's username.
func (c CredentialIdentity) Username() string {
	if c.cred == nil {
		return ""
	}
	return c.cred.Username
}

// Email returns the credential's email address.
func (c CredentialIdentity) Email() string {
	if c.cred == nil {
		return ""
	}
	return c.cred.Email
}
