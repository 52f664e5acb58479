package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	appErrors "github.com/steamsedu/steams/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	return ctx, rec
}

func TestSuccess(t *testing.T) {
	ctx, rec := newTestContext()

	Success(ctx, http.StatusCreated, gin.H{"content": "Hello"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success flag to be true")
	}
	if resp.Error != nil {
		t.Fatal("expected no error information")
	}
}

func TestErrorWithValidationError(t *testing.T) {
	ctx, rec := newTestContext()

	Error(ctx, appErrors.NewValidation("content is required"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success {
		t.Fatal("expected success to be false")
	}
	if resp.Error == nil || resp.Error.Code != appErrors.ErrValidation.Code {
		t.Fatal("expected validation error code in response")
	}
	if resp.Error.Message != "content is required" {
		t.Fatalf("unexpected message %q", resp.Error.Message)
	}
}

func TestErrorWithGenericErrorHidesInternals(t *testing.T) {
	ctx, rec := newTestContext()

	Error(ctx, errors.New("database is locked"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
	}
	if body := rec.Body.String(); body == "" || strings.Contains(body, "database is locked") {
		t.Fatalf("internal error leaked into body: %s", body)
	}
}
