package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type sample struct {
	Phone    string `json:"phone_number" validate:"phone"`
	OTP      string `json:"otp" validate:"otp"`
	IDNumber string `json:"id_number" validate:"omitempty,idnumber"`
	Country  string `json:"country" validate:"country"`
}

func TestApply_Rules(t *testing.T) {
	v := validator.New()
	Apply(v)

	valid := sample{Phone: "+254 712 345678", OTP: "012345", IDNumber: "A1234567", Country: "Kenya"}
	if err := v.Struct(valid); err != nil {
		t.Fatalf("expected valid sample, got %v", err)
	}

	invalid := sample{Phone: "0712345678", OTP: "12345a", IDNumber: "!!", Country: "1"}
	err := v.Struct(invalid)
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	got := map[string]string{}
	for _, fe := range fieldErrs {
		got[fe.Field()] = fe.Tag()
	}
	for field, tag := range map[string]string{"phone_number": "phone", "otp": "otp", "id_number": "idnumber", "country": "country"} {
		if got[field] != tag {
			t.Fatalf("expected %s to fail %s, got %v", field, tag, got)
		}
	}
}
