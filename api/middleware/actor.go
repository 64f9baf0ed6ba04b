package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/craftmart/fulfillment-backend/api/responses"
	"github.com/craftmart/fulfillment-backend/internal/orders"
	"github.com/craftmart/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
)

type actorContextKey struct{}

// Actor resolves the acting identity from gateway-verified headers and binds
// it to the request context. Authentication is handled upstream; this service
// trusts the forwarded identity.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actorID, err := uuid.Parse(r.Header.Get(actorIDHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or invalid actor id header"))
				return
			}
			role, err := enums.ParseActorRole(r.Header.Get(actorRoleHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or invalid actor role header"))
				return
			}

			actor := orders.Actor{ID: actorID, Role: role}
			ctx = context.WithValue(ctx, actorContextKey{}, actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actorID.String(), string(role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor binds an actor directly, bypassing header resolution.
func WithActor(ctx context.Context, actor orders.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor bound by the Actor middleware.
func ActorFromContext(ctx context.Context) (orders.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(orders.Actor)
	return actor, ok
}

// RequireRole rejects requests whose actor is not one of the allowed roles.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	allowed := make(map[enums.ActorRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing"))
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted for this operation"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
