package auth

import (
	"context"
	"errors"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Resolver maps an opaque credential to the account it belongs to.
// Token issuance and verification live outside this module; callers
// plug in their own implementation.
type Resolver interface {
	ResolvePrincipal(ctx context.Context, token string) (accountUUID string, err error)
}
