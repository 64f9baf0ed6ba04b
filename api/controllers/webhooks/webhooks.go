// Package webhooks terminates inbound provider callbacks. Both webhook
// endpoints share the same outer shell: verify the HMAC signature over the
// raw body, claim the event id in redis, then hand the payload to the
// domain service. A processing failure releases the claim so the provider's
// retry can land.
package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/craftmart/fulfillment-backend/api/responses"
	pkgerrors "github.com/craftmart/fulfillment-backend/pkg/errors"
	"github.com/craftmart/fulfillment-backend/pkg/logger"
	"github.com/craftmart/fulfillment-backend/pkg/metrics"
	"github.com/craftmart/fulfillment-backend/pkg/outbox/idempotency"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
	SignatureHeader = "X-Webhook-Signature"

	maxBodyBytes = 1 << 20
)

// Service is the slice of a webhook domain service the gateway needs.
type Service interface {
	EventID(body []byte) (string, error)
	Process(ctx context.Context, body []byte) error
}

// Handler returns the gateway endpoint for one webhook source.
func Handler(source, signingSecret string, guard *idempotency.Guard, svc Service, wm *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			wm.IncRejected(source, "body_read")
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading webhook body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
		if signature == "" {
			wm.IncRejected(source, "missing_signature")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook signature"))
			return
		}
		if !verifySignature(signingSecret, body, signature) {
			wm.IncRejected(source, "bad_signature")
			logg.Warn(ctx, "webhook signature verification failed")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		eventID, err := svc.EventID(body)
		if err != nil {
			wm.IncRejected(source, "malformed_payload")
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithEventID(ctx, eventID)

		claimed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !claimed {
			wm.IncDuplicate(source)
			logg.Debug(ctx, "webhook event already processed")
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.Process(ctx, body); err != nil {
			if delErr := guard.Delete(ctx, eventID); delErr != nil {
				logg.Error(ctx, "releasing webhook idempotency claim", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		wm.IncProcessed(source)
		responses.WriteSuccess(w, nil)
	}
}

func verifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
