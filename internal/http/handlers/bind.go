package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/geocoder89/tourhub/internal/domain/user"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator and
// makes it report fields by their json names. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return user.ValidUsername(fl.Field().String())
		})
	})
}

func jsonFieldName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return sf.Name
	}
	return name
}

// BindJSON decodes and validates the body. Rule violations answer 422,
// undecodable bodies 400.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	RegisterValidators()

	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var invalid validator.ValidationErrors
	var tooLarge *http.MaxBytesError
	var syntax *json.SyntaxError
	var mismatch *json.UnmarshalTypeError

	switch {
	case errors.As(err, &invalid):
		RespondUnprocessable(ctx, "Invalid request body", gin.H{"fields": ruleViolations(invalid)})
	case errors.Is(err, user.ErrInvalidRole):
		RespondUnprocessable(ctx, "Invalid request body", fieldDetails("role", "oneof", "admin leader requestor"))
	case errors.As(err, &tooLarge):
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
	case errors.Is(err, io.EOF):
		RespondBadRequest(ctx, "Request body is required", nil)
	case errors.As(err, &syntax):
		RespondBadRequest(ctx, "Invalid request body", gin.H{"json": "invalid_json_syntax"})
	case errors.As(err, &mismatch):
		// Field is already the dotted json path
		field := strings.TrimSpace(mismatch.Field)
		RespondBadRequest(ctx, "Invalid request body", gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", mismatch.Type),
			}},
		})
	default:
		RespondBadRequest(ctx, "Invalid request body", gin.H{"reason": err.Error()})
	}
	return false
}

// RespondFieldError reports a single field that failed a check done after binding.
func RespondFieldError(ctx *gin.Context, field, rule, message string) {
	RespondUnprocessable(ctx, "Invalid request body", gin.H{"fields": []FieldError{{
		Field:   field,
		Rule:    rule,
		Message: message,
	}}})
}

func fieldDetails(field, rule, param string) gin.H {
	return gin.H{"fields": []FieldError{{
		Field:   field,
		Rule:    rule,
		Param:   param,
		Message: validationMessage(rule, param),
	}}}
}

func ruleViolations(errs validator.ValidationErrors) []FieldError {
	fields := make([]FieldError, 0, len(errs))
	for _, fe := range errs {
		fields = append(fields, FieldError{
			Field:   fieldPath(fe),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: validationMessage(fe.Tag(), fe.Param()),
		})
	}
	return fields
}

// fieldPath drops the root struct name from the namespace, leaving the json
// path, e.g. "CreateRequest.duration_days" becomes "duration_days".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok && rest != "" {
		return rest
	}
	return fe.Field()
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "username":
		return "may only contain letters, digits, hyphens and underscores"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
