package subscriptions

import (
	"net/http"
	"time"

	"github.com/Kopi-Koubou/aura-backend/api/middleware"
	"github.com/Kopi-Koubou/aura-backend/api/responses"
	"github.com/Kopi-Koubou/aura-backend/api/validators"
	"github.com/Kopi-Koubou/aura-backend/internal/subscriptions"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

type validateReceiptRequest struct {
	CustomerID string `json:"revenuecat_customer_id" validate:"required,max=256"`
}

type validateReceiptResponse struct {
	IsPremium bool       `json:"is_premium"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// ValidateReceipt handles POST /validate-receipt.
func ValidateReceipt(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var req validateReceiptRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.ValidateReceipt(ctx, middleware.UserIDFromContext(ctx), req.CustomerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, validateReceiptResponse{
			IsPremium: result.IsPremium,
			ExpiresAt: result.ExpiresAt,
		})
	}
}
