package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"parse failed", ParseFailed("eml", errors.New("eof")), http.StatusUnprocessableEntity},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("email")), http.StatusNotFound},
		{"unavailable", Unavailable("crm"), http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAsAppError(t *testing.T) {
	cause := errors.New("socket closed")
	appErr := AsAppError(cause)

	if appErr.Code != CodeInternalError {
		t.Errorf("Code = %s, want %s", appErr.Code, CodeInternalError)
	}
	if !errors.Is(appErr, cause) {
		t.Error("AsAppError() should keep the cause")
	}
	if !HasCode(fmt.Errorf("x: %w", ParseFailed("eml", cause)), CodeParseFailed) {
		t.Error("HasCode() = false, want true")
	}
}
