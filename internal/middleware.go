package internal

import (
	"github.com/go-kit/kit/endpoint"
	"golang.org/x/net/context"

	"github.com/derWhity/whispqr/internal/ctxhelper"
)

// EnsureHost is a middleware that checks if the current call carries a verified host identity
func EnsureHost(next endpoint.Endpoint) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		id := ctxhelper.Identity(ctx)
		if id == nil || id.HostID == "" {
			// Guests may not do this
			return nil, ErrNotLoggedIn
		}
		return next(ctx, request)
	}
}
