package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/geocoder89/sitehub/internal/utils"
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

var setupOnce sync.Once

// setupValidator makes gin's validator report fields by their JSON names,
// so "CreateTaskRequest.assigneeId" instead of ".AssigneeID", and adds the
// trimmed_email rule: the value must be an email once surrounding spaces
// are dropped.
func setupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(sf reflect.StructField) string {
			name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
			switch name {
			case "-":
				return ""
			case "":
				return sf.Name
			}
			return name
		})
		_ = v.RegisterValidation("trimmed_email", func(fl validator.FieldLevel) bool {
			return v.Var(strings.TrimSpace(fl.Field().String()), "email") == nil
		})
	})
}

// BindJSON decodes and validates the body into out. On failure it writes a
// 400 (or 413) and reports false.
func BindJSON(ctx *gin.Context, out any) bool {
	setupValidator()

	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body is too large", nil)
		return false
	}

	RespondBadRequest(ctx, "Invalid request body", describeBindError(err))
	return false
}

// pathID reads a uuid path parameter, answering 400 when it is malformed.
func pathID(ctx *gin.Context, name string) (string, bool) {
	id := ctx.Param(name)
	if !utils.IsUUID(id) {
		RespondBadRequest(ctx, "Invalid "+name, nil)
		return "", false
	}
	return id, true
}

func queryString(ctx *gin.Context, name string) *string {
	v := strings.TrimSpace(ctx.Query(name))
	if v == "" {
		return nil
	}
	return &v
}

func describeBindError(err error) gin.H {
	var (
		verrs     validator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &verrs):
		fields := make([]FieldError, len(verrs))
		for i, fe := range verrs {
			fields[i] = FieldError{
				Field:   fieldPath(fe),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: ruleMessage(fe.Tag(), fe.Param()),
			}
		}
		return gin.H{"fields": fields}

	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return gin.H{"json": "invalid_json_syntax"}

	case errors.As(err, &typeErr):
		// Field is already the dotted path of JSON keys.
		return gin.H{
			"json":  "invalid_json_type",
			"field": typeErr.Field,
			"fields": []FieldError{{
				Field:   typeErr.Field,
				Rule:    "type",
				Message: "must be of type " + typeErr.Type.String(),
			}},
		}

	case errors.Is(err, io.EOF):
		return gin.H{"json": "empty_body"}
	}

	return gin.H{"reason": err.Error()}
}

// fieldPath drops the root struct name from the validator namespace.
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok && rest != "" {
		return rest
	}
	return fe.Field()
}

var ruleMessages = map[string]string{
	"required":      "is required",
	"email":         "must be a valid email address",
	"trimmed_email": "must be a valid email address",
	"uuid":          "must be a valid UUID",
	"min":           "must be at least %s",
	"max":           "must be at most %s",
	"gt":            "must be greater than %s",
	"gte":           "must be greater than or equal to %s",
	"oneof":         "must be one of %s",
}

func ruleMessage(rule, param string) string {
	if tmpl, ok := ruleMessages[rule]; ok {
		if !strings.Contains(tmpl, "%s") {
			return tmpl
		}
		if rule == "oneof" {
			param = strings.ReplaceAll(param, " ", ", ")
		}
		return strings.Replace(tmpl, "%s", param, 1)
	}

	if param != "" {
		return "failed " + rule + " validation (" + param + ")"
	}
	return "failed " + rule + " validation"
}
