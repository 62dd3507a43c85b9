package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/sitehub/internal/domain/material"
	"github.com/geocoder89/sitehub/internal/domain/task"
	"github.com/geocoder89/sitehub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bindRouter[T any]() *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/bind", func(ctx *gin.Context) {
		var req T
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func postBind(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBindError(t *testing.T, w *httptest.ResponseRecorder) bindErrorResponse {
	t.Helper()

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}
	return resp
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	r := bindRouter[task.CreateTaskRequest]()

	w := postBind(r, `{"title":"x","priority":"urgent","assigneeId":"nope"}`)
	resp := decodeBindError(t, w)

	wantRules := map[string]string{
		"title":      "min",
		"priority":   "oneof",
		"assigneeId": "uuid",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	r := bindRouter[material.CreateMaterialRequest]()

	w := postBind(r, `{"name":"Cement","unit":"bag","unitPrice":"cheap"}`)
	resp := decodeBindError(t, w)

	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "unitPrice" {
		t.Fatalf("expected detail field to be unitPrice, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 {
		t.Fatalf("expected at least one field error in details.fields")
	}

	fieldErr := resp.Error.Details.Fields[0]
	if fieldErr.Rule != "type" {
		t.Fatalf("expected fields[0].rule=type, got %q", fieldErr.Rule)
	}
	if fieldErr.Message == "" {
		t.Fatalf("expected non-empty fields[0].message")
	}
}

func TestBindJSON_MalformedAndEmptyBodies(t *testing.T) {
	r := bindRouter[task.CreateCommentRequest]()

	resp := decodeBindError(t, postBind(r, `{"body":`))
	if resp.Error.Details.JSON != "invalid_json_syntax" {
		t.Fatalf("expected invalid_json_syntax, got %q", resp.Error.Details.JSON)
	}

	resp = decodeBindError(t, postBind(r, ``))
	if resp.Error.Details.JSON != "empty_body" {
		t.Fatalf("expected empty_body, got %q", resp.Error.Details.JSON)
	}
}

func TestBindJSON_ValidBodyPasses(t *testing.T) {
	r := bindRouter[task.CreateCommentRequest]()

	w := postBind(r, `{"body":"Slab poured"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestBindJSON_OversizedBodyIs413(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/bind", func(ctx *gin.Context) {
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, 8)
		var req task.CreateCommentRequest
		if handlers.BindJSON(ctx, &req) {
			ctx.Status(http.StatusCreated)
		}
	})

	w := postBind(r, `{"body":"far more than eight bytes"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want 413, body=%s", w.Code, w.Body.String())
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"payload_too_large"`)) {
		t.Fatalf("expected payload_too_large code, body=%s", w.Body.String())
	}
}

func TestBindJSON_RuleMessages(t *testing.T) {
	r := bindRouter[task.CreateTaskRequest]()
	resp := decodeBindError(t, postBind(r, `{"title":"x","priority":"urgent"}`))

	want := map[string]string{
		"title":    "must be at least 2",
		"priority": "must be one of low, medium, high",
	}
	for _, fe := range resp.Error.Details.Fields {
		if msg, ok := want[fe.Field]; ok && fe.Message != msg {
			t.Fatalf("field %q message = %q, want %q", fe.Field, fe.Message, msg)
		}
	}
}
