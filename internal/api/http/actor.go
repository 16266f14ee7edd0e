package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type actorContextKey string

const actorKey actorContextKey = "actor"

// Actor is the caller as forwarded by the authenticating gateway.
type Actor struct {
	UserID   string
	UserName string
}

// requireActor rejects requests without an X-User-ID header.
func (s *Server) requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if id == "" {
			respondError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "missing X-User-ID")
			return
		}
		a := &Actor{UserID: id, UserName: strings.TrimSpace(r.Header.Get("X-User-Name"))}
		ctx := context.WithValue(r.Context(), actorKey, a)
		zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("actor", id)
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFromContext(ctx context.Context) *Actor {
	if a, ok := ctx.Value(actorKey).(*Actor); ok {
		return a
	}
	return nil
}
