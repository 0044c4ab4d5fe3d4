package api

import (
	"context"
	"net/http"

	"github.com/stampworks/sigforge/internal/pkg/httputil"
)

type orgKey struct{}
type callerKey struct{}

// Caller is the identity the auth gateway attached to the request.
type Caller struct {
	AuthID string
	Email  string
	Name   string
}

// requireOrg rejects requests without an organization header and stores the
// org ID and caller identity in the request context.
func requireOrg(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID := r.Header.Get("X-Organization-ID")
		if orgID == "" {
			httputil.Error(w, http.StatusUnauthorized, "organization context required")
			return
		}
		caller := Caller{
			AuthID: r.Header.Get("X-User-ID"),
			Email:  r.Header.Get("X-User-Email"),
			Name:   r.Header.Get("X-User-Name"),
		}
		ctx := context.WithValue(r.Context(), orgKey{}, orgID)
		ctx = context.WithValue(ctx, callerKey{}, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func orgFromContext(ctx context.Context) string {
	orgID, _ := ctx.Value(orgKey{}).(string)
	return orgID
}

func callerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
