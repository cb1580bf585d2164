package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// Messages returned for upload problems.
const (
	MsgNoFileUploaded = "No file uploaded"
	MsgNoFileSelected = "No file selected"
	MsgFileTooLarge   = "File too large"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	status  int
	Message string `json:"error" doc:"Human readable error message" example:"No file uploaded"`
}

// Error implements error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *ErrorResponse) GetStatus() int {
	return e.status
}

func init() {
	huma.NewError = NewError
}

// NewError builds an ErrorResponse. Multipart parse failures reported by huma
// become a missing upload, and oversized bodies become 413.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	if status == http.StatusRequestEntityTooLarge {
		return &ErrorResponse{status: status, Message: MsgFileTooLarge}
	}

	var details []string
	for _, err := range errs {
		detailer, ok := err.(huma.ErrorDetailer)
		if !ok {
			continue
		}
		detail := detailer.ErrorDetail()
		switch {
		case strings.Contains(detail.Message, "too large"):
			return &ErrorResponse{status: http.StatusRequestEntityTooLarge, Message: MsgFileTooLarge}
		case strings.Contains(detail.Message, "multipart"):
			return &ErrorResponse{status: http.StatusBadRequest, Message: MsgNoFileUploaded}
		}
		details = append(details, detail.Error())
	}

	// Validation details are appended so clients see what failed; errors passed
	// alongside 5xx messages stay server-side.
	if status == http.StatusUnprocessableEntity && len(details) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(details, "; "))
	}
	return &ErrorResponse{status: status, Message: msg}
}
