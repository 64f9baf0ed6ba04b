package handlers

import (
	"net/http"

	"github.com/craftmart/fulfillment-backend/api/responses"
	"github.com/craftmart/fulfillment-backend/pkg/db"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/redis"
)

// Live reports process liveness.
func Live() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// Ready reports whether the datastores the service depends on are reachable.
func Ready(dbClient db.Pinger, redisClient redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if dbClient != nil {
			if err := dbClient.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
