package accounts

import (
	persistence "github.com/goliatone/go-persistence-bun"
)

// RegisterModels registers the package models with the persistence client
// so fixtures and schema management can find them. Call it before creating
// the client.
func RegisterModels() {
	persistence.RegisterModel((*Credential)(nil))
	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*PasswordReset)(nil))
}
