package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sagarc03/sitehost"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorClass is the HTTP rendering of a service error.
type errorClass struct {
	status  int
	code    string
	message string
}

// classify maps a service error to its status, machine code and a message
// safe to show to users.
func classify(err error) errorClass {
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytes):
		return errorClass{http.StatusRequestEntityTooLarge, "payload_too_large", "Upload is larger than the allowed size"}
	case errors.Is(err, sitehost.ErrNotFound):
		return errorClass{http.StatusNotFound, "not_found", "Site not found"}
	case errors.Is(err, sitehost.ErrUnsupportedFileType):
		return errorClass{http.StatusBadRequest, "unsupported_file_type", "Only HTML and ZIP files are allowed"}
	case errors.Is(err, sitehost.ErrWeakPassword):
		return errorClass{http.StatusBadRequest, "weak_password", detail(err, sitehost.ErrWeakPassword, "Password is too short")}
	case errors.Is(err, sitehost.ErrInvalidInput):
		return errorClass{http.StatusBadRequest, "invalid_input", detail(err, sitehost.ErrInvalidInput, "Invalid input")}
	case errors.Is(err, sitehost.ErrDuplicateIdentifier):
		return errorClass{http.StatusConflict, "duplicate_identifier", "Site name already exists, choose another name"}
	case errors.Is(err, sitehost.ErrAlreadyRegistered):
		return errorClass{http.StatusConflict, "already_registered", "This email is already registered"}
	case errors.Is(err, sitehost.ErrAlreadySetUp):
		return errorClass{http.StatusConflict, "already_set_up", "Setup has already been completed"}
	case errors.Is(err, sitehost.ErrInvalidCredentials):
		return errorClass{http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect"}
	case errors.Is(err, sitehost.ErrUnauthorized):
		return errorClass{http.StatusUnauthorized, "unauthorized", "Sign in required"}
	case errors.Is(err, sitehost.ErrForbidden):
		return errorClass{http.StatusForbidden, "forbidden", "You do not have permission to do this"}
	default:
		return errorClass{http.StatusInternalServerError, "internal_error", "Internal server error"}
	}
}

// detail returns the text that follows sentinel in err's message, such as
// "site name cannot be empty" from "publish: invalid input: site name cannot be empty".
func detail(err, sentinel error, fallback string) string {
	msg := err.Error()
	marker := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		if d := msg[i+len(marker):]; d != "" {
			return d
		}
	}
	return fallback
}

func logError(r *http.Request, class errorClass, err error) {
	level := slog.LevelInfo
	if class.status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(r.Context(), level, "request error",
		"error", err, "status", class.status, "method", r.Method, "path", r.URL.Path)
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the JSON error response matching err's sentinel.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	class := classify(err)
	logError(r, class, err)
	WriteError(w, class.status, class.code, class.message)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
