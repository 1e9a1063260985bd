package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/Kopi-Koubou/aura-backend/pkg/errors"
)

type sampleBody struct {
	Code  string `json:"referral_code" validate:"required,max=32"`
	Color string `json:"color" validate:"omitempty,oneof=red blue"`
}

func TestDecodeJSONBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"referral_code":"AB3DEFGH","extra":1}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "AB3DEFGH" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDecodeJSONBodyErrors(t *testing.T) {
	cases := map[string]string{
		"empty":     ``,
		"malformed": `{"referral_code":`,
		"missing":   `{}`,
		"enum":      `{"referral_code":"x","color":"green"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/", strings.NewReader(raw))
			var body sampleBody
			err := DecodeJSONBody(req, &body)
			if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	err := ValidateStruct(&sampleBody{Color: "green"})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["referral_code"] != "is required" {
		t.Fatalf("unexpected details %v", details)
	}
	if details["color"] != "must be one of: red blue" {
		t.Fatalf("unexpected details %v", details)
	}
}
