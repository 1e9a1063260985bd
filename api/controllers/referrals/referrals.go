package referrals

import (
	"net/http"
	"time"

	"github.com/Kopi-Koubou/aura-backend/api/middleware"
	"github.com/Kopi-Koubou/aura-backend/api/responses"
	"github.com/Kopi-Koubou/aura-backend/api/validators"
	"github.com/Kopi-Koubou/aura-backend/internal/referrals"
	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
	"github.com/Kopi-Koubou/aura-backend/pkg/logger"
)

type redeemRequest struct {
	ReferralCode string `json:"referral_code" validate:"required,max=64"`
}

type redeemResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	PremiumGranted bool   `json:"premium_granted,omitempty"`
	PremiumDays    int    `json:"premium_days,omitempty"`
}

type codeResponse struct {
	Code      string     `json:"code"`
	TimesUsed int        `json:"times_used"`
	MaxUses   *int       `json:"max_uses"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Redeem handles POST /referral-redeem.
func Redeem(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(ctx)

		var req redeemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Invalid referral code"))
			return
		}

		result, err := svc.Redeem(ctx, userID, req.ReferralCode)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, redeemResponse{
			Success:        true,
			Message:        result.Message,
			PremiumGranted: result.PremiumGranted,
			PremiumDays:    result.PremiumDays,
		})
	}
}

// GetCode handles GET /referral-code, issuing a code on first use.
func GetCode(svc referrals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}

		code, err := svc.EnsureCode(ctx, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, codeResponse{
			Code:      code.Code,
			TimesUsed: code.TimesUsed,
			MaxUses:   code.MaxUses,
			ExpiresAt: code.ExpiresAt,
		})
	}
}
