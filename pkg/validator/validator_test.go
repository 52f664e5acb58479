package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type subscribePayload struct {
	Endpoint string `json:"endpoint" validate:"required,pushendpoint"`
	Auth     string `json:"auth" validate:"required"`
	P256dh   string `json:"p256dh" validate:"required"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := subscribePayload{
		Endpoint: "https://fcm.googleapis.com/fcm/send/abc",
		Auth:     "auth",
		P256dh:   "key",
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	err := ValidateStruct(subscribePayload{Endpoint: "ftp://push.example"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(vErrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d", len(vErrs))
	}
	if vErrs[0].Field != "endpoint" || vErrs[0].Tag != "pushendpoint" {
		t.Fatalf("unexpected first failure %+v", vErrs[0])
	}
}

func TestIsPushEndpoint(t *testing.T) {
	cases := map[string]bool{
		"https://updates.push.services.mozilla.com/wpush/v2/x": true,
		"http://127.0.0.1:9000/push":                           true,
		"http://localhost/push":                                true,
		"http://push.example.com/x":                            false,
		"/relative":                                            false,
		"":                                                     false,
	}
	for raw, want := range cases {
		if got := IsPushEndpoint(raw); got != want {
			t.Errorf("IsPushEndpoint(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("kind", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "digest"
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type custom struct {
		Value string `validate:"kind"`
	}

	if err := ValidateStruct(custom{Value: "digest"}); err != nil {
		t.Fatalf("expected validation to pass, got %v", err)
	}
	if err := ValidateStruct(custom{Value: "other"}); err == nil {
		t.Fatal("expected validation to fail for non-matching value")
	}
}
