package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return v
}

// FieldError 描述一个不合法字段
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

var fieldLabels = map[string]string{
	"Name":             "Community name",
	"Purpose":          "Purpose",
	"Rules":            "Rule",
	"ModerationLevel":  "Moderation level",
	"EngagementStyle":  "Engagement style",
	"PostingFrequency": "Posting frequency",
}

// Validate checks limits and enum membership of an update payload.
// The first violation is returned as a *FieldError.
func Validate(f *UpdateFields) error {
	if strings.TrimSpace(f.Name) == "" {
		return &FieldError{Field: "name", Message: "Community name is required"}
	}
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	// dive 产生的字段名形如 Rules[2]
	name, _, _ := strings.Cut(fe.StructField(), "[")
	label := fieldLabels[name]
	if label == "" {
		label = name
	}
	var msg string
	switch fe.Tag() {
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "oneof":
		msg = fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "required", "notblank":
		msg = fmt.Sprintf("%s must not be blank", label)
	default:
		msg = fmt.Sprintf("%s is invalid", label)
	}
	return &FieldError{Field: fe.Field(), Message: msg}
}
