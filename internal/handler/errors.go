package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"colabtrack/internal/auth"
	"colabtrack/internal/repository"
	"colabtrack/internal/service"

	"github.com/gin-gonic/gin"
)

// clientErrors lists the domain errors a client may see, each with its status.
// An empty message means the error text itself, capitalized.
var clientErrors = []struct {
	err     error
	status  int
	message string
}{
	{repository.ErrUserNotFound, http.StatusNotFound, ""},
	{repository.ErrProjectNotFound, http.StatusNotFound, ""},
	{repository.ErrTaskNotFound, http.StatusNotFound, ""},
	{repository.ErrCommentNotFound, http.StatusNotFound, ""},
	{repository.ErrAttachmentNotFound, http.StatusNotFound, ""},
	{repository.ErrMemberNotFound, http.StatusNotFound, ""},

	{repository.ErrDuplicateEmail, http.StatusConflict, "User with this email already exists"},
	{service.ErrCyclicDependency, http.StatusConflict, ""},
	{service.ErrCyclicHierarchy, http.StatusConflict, ""},

	{service.ErrAuthenticationFailed, http.StatusUnauthorized, "Invalid credentials"},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, "Invalid or expired token"},
	{auth.ErrTokenExpired, http.StatusUnauthorized, "Invalid or expired token"},

	{service.ErrCrossProjectDependency, http.StatusBadRequest, ""},
	{service.ErrCrossProjectParent, http.StatusBadRequest, ""},
	{service.ErrSelfParent, http.StatusBadRequest, ""},
	{service.ErrInvalidStatus, http.StatusBadRequest, ""},
	{service.ErrInvalidPriority, http.StatusBadRequest, ""},
	{service.ErrInvalidInput, http.StatusBadRequest, ""},
	{repository.ErrInvalidReference, http.StatusBadRequest, ""},

	{service.ErrForbidden, http.StatusForbidden, "You don't have permission to perform this action"},

	{repository.ErrTimeout, http.StatusGatewayTimeout, "Request timed out"},
	{repository.ErrStoreUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// statusFor maps a domain error onto its HTTP status and client message.
// ok is false for errors nothing here knows about.
func statusFor(err error) (status int, message string, ok bool) {
	for _, ce := range clientErrors {
		if !errors.Is(err, ce.err) {
			continue
		}
		if ce.message == "" {
			return ce.status, capitalize(ce.err.Error()), true
		}
		return ce.status, ce.message, true
	}
	return http.StatusInternalServerError, "Internal server error", false
}

// writeError responds with the status for err. Unknown errors are logged and hidden.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	status, message, known := statusFor(err)
	if !known {
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"error": message})
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
