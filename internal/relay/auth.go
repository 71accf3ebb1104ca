package relay

import (
	"context"

	"github.com/tOgg1/ostruka/internal/db"
)

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, user, password string) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, user, password string) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context, user, password string) error {
	return f(ctx, user, password)
}

// AllowAll accepts every login. Used when the relay runs without an account
// database.
func AllowAll() Authenticator {
	return AuthenticatorFunc(func(context.Context, string, string) error { return nil })
}

// Accounts authenticates against the sqlite account store.
func Accounts(repo *db.AccountRepository) Authenticator {
	return AuthenticatorFunc(func(ctx context.Context, user, password string) error {
		_, err := repo.Authenticate(ctx, user, password)
		return err
	})
}
