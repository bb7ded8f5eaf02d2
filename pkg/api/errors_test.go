package api

import (
	"encoding/json"
	"testing"
)

func TestAPIErrorInterface(t *testing.T) {
	var _ error = &APIError{}
}

func TestAPIErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			"with param",
			&APIError{Type: ErrorTypeInvalidRequest, Param: "email", Message: "is required"},
			"invalid_request: is required (param: email)",
		},
		{
			"without param",
			&APIError{Type: ErrorTypeServerError, Message: "internal failure"},
			"server_error: internal failure",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("APIError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *APIError
		wantType  ErrorType
		wantParam string
	}{
		{"invalid request", NewInvalidRequestError("name", "bad"), ErrorTypeInvalidRequest, "name"},
		{"not found", NewNotFoundError("User not found"), ErrorTypeNotFound, ""},
		{"conflict", NewConflictError("email", "taken"), ErrorTypeConflict, "email"},
		{"server", NewServerError("boom"), ErrorTypeServerError, ""},
		{"too many requests", NewTooManyRequestsError("slow down"), ErrorTypeTooManyRequests, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", tt.err.Type, tt.wantType)
			}
			if tt.err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", tt.err.Param, tt.wantParam)
			}
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := ErrorResponse{Error: &APIError{
		Type:    ErrorTypeAuthentication,
		Code:    "expired_token",
		Message: "Token has expired",
	}}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	want := `{"error":{"type":"authentication_error","code":"expired_token","message":"Token has expired"}}`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}
}
