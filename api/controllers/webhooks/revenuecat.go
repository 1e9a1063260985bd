package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Kopi-Koubou/aura-backend/api/responses"
	"github.com/Kopi-Koubou/aura-backend/internal/subscriptions"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

const maxWebhookBytes = 1 << 20

// RevenueCatWebhook handles POST /sync-subscription. The secret is checked by
// middleware. Business no-ops still answer 200 so the provider does not retry;
// malformed payloads and store failures answer 500.
func RevenueCatWebhook(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var event subscriptions.WebhookPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode webhook payload"))
			return
		}
		if !event.HasEvent() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook payload has no event"))
			return
		}

		if _, err := svc.HandleEvent(ctx, &event, payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteOK(w)
	}
}
