package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/uclf/legal-aid-portal/pkg/models"
)

var (
	v *validator.Validate

	// Phone/contact: digits, spaces, plus, dash, dots and parentheses; 7–30 chars.
	// Masked numbers from paper forms ("0701XXXXXX") are accepted.
	reContact = regexp.MustCompile(`^[0-9Xx +().-]{7,30}$`)
)

func init() {
	v = validator.New()

	// Use JSON tag as the field name in error output
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("program", func(fl validator.FieldLevel) bool {
		return models.Program(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("urgency", func(fl validator.FieldLevel) bool {
		return models.Urgency(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("casestatus", func(fl validator.FieldLevel) bool {
		return models.CaseStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("tier", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseRole(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("memberstatus", func(fl validator.FieldLevel) bool {
		return models.MemberStatus(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("contact", func(fl validator.FieldLevel) bool {
		val := strings.TrimSpace(fl.Field().String())
		if val == "" { // let required/omitempty handle empty
			return true
		}
		return reContact.MatchString(val)
	})
}

// Validate returns map[field][]messages (Laravel-like)
func Validate(s any) (map[string][]string, error) {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		out := make(map[string][]string)
		for _, e := range ve {
			field := e.Field() // already mapped from json tag

			switch e.Tag() {
			case "required":
				out[field] = append(out[field], "This field is required")

			case "email":
				out[field] = append(out[field], "Invalid email format")

			case "min":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at least %s", e.Param()))
				}

			case "max":
				if e.Kind() == reflect.String {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s characters", e.Param()))
				} else {
					out[field] = append(out[field], fmt.Sprintf("Must be at most %s", e.Param()))
				}

			case "oneof":
				out[field] = append(out[field], "Value is not allowed")

			case "uuid", "uuid4":
				out[field] = append(out[field], "Invalid UUID format")

			case "program":
				out[field] = append(out[field], "Unknown legal-aid program")

			case "urgency":
				out[field] = append(out[field], "Urgency must be Low, Medium or High")

			case "casestatus":
				out[field] = append(out[field], "Unknown case status")

			case "tier":
				out[field] = append(out[field], "Tier must be Guest, Student, Associate, Full Member or Admin")

			case "memberstatus":
				out[field] = append(out[field], "Status must be Active, Inactive or Pending")

			case "contact":
				out[field] = append(out[field], "Invalid phone/contact format")

			default:
				// Fallback to original error text if we missed a tag
				out[field] = append(out[field], e.Error())
			}
		}
		return out, nil
	}
	return nil, nil
}
