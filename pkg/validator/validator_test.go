package validator

import (
	"testing"
)

type testSettings struct {
	Port   int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	Secret string `mapstructure:"secret" validate:"required"`
}

func TestValidateStructSuccess(t *testing.T) {
	settings := testSettings{Port: 8000, Secret: "s3cret"}

	if err := ValidateStruct(settings); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructFailures(t *testing.T) {
	settings := testSettings{Port: 0, Secret: ""}

	err := ValidateStruct(settings)
	if err == nil {
		t.Fatal("expected validation error")
	}

	vErrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	if len(vErrs) != 2 {
		t.Fatalf("expected 2 validation errors, got %d", len(vErrs))
	}

	foundSecret := false
	for _, v := range vErrs {
		if v.Field == "secret" {
			foundSecret = true
		}
	}
	if !foundSecret {
		t.Fatal("expected secret field in validation errors")
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "port", Tag: "gte", Param: "1"},
		{Field: "secret", Tag: "required"},
	}

	want := "port failed on gte=1; secret failed on required"
	if errs.Error() != want {
		t.Fatalf("unexpected message %q", errs.Error())
	}
}
