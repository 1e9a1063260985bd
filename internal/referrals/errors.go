package referrals

import (
	"errors"

	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
)

var (
	ErrInvalidFormat   = errors.New("referral code has invalid format")
	ErrAlreadyRedeemed = errors.New("user already redeemed a referral code")
	ErrCodeNotFound    = errors.New("referral code not found")
	ErrSelfReferral    = errors.New("referral code belongs to the caller")
	ErrMaxUsesReached  = errors.New("referral code reached max uses")
	ErrExpired         = errors.New("referral code expired")
)

type rejection struct {
	code    pkgerrors.Code
	message string
	outcome string
}

// rejections maps each validation failure to the caller-facing message.
var rejections = map[error]rejection{
	ErrInvalidFormat:   {pkgerrors.CodeValidation, "Invalid referral code format", "invalid_format"},
	ErrAlreadyRedeemed: {pkgerrors.CodeConflict, "You have already redeemed a referral code", "already_redeemed"},
	ErrCodeNotFound:    {pkgerrors.CodeNotFound, "Referral code not found or expired", "not_found"},
	ErrSelfReferral:    {pkgerrors.CodeConflict, "You cannot use your own referral code", "self_referral"},
	ErrMaxUsesReached:  {pkgerrors.CodeValidation, "This referral code has reached its maximum uses", "max_uses"},
	ErrExpired:         {pkgerrors.CodeValidation, "This referral code has expired", "expired"},
}

func reject(sentinel error) *pkgerrors.Error {
	r, ok := rejections[sentinel]
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, sentinel, "unexpected referral failure")
	}
	return pkgerrors.Wrap(r.code, sentinel, r.message)
}

// outcomeOf returns the metrics label for a Redeem error.
func outcomeOf(err error) string {
	if err == nil {
		return "success"
	}
	for sentinel, r := range rejections {
		if errors.Is(err, sentinel) {
			return r.outcome
		}
	}
	return "error"
}
