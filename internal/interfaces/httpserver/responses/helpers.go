package responses

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/utils/platformerrors"
)

// HandleError handles errors and writes appropriate HTTP responses.
// It maps store sentinel errors and platform errors to HTTP status codes.
func HandleError(c *gin.Context, err error, message string) {
	logger := log.With().Str("path", c.Request.URL.Path).Logger()

	// Check for store sentinel errors first
	if errors.Is(err, session.ErrNotFound) && platformerrors.GetPlatformError(err) == nil {
		platformerrors.WriteNotFound(c, message)
		return
	}
	if errors.Is(err, session.ErrAlreadyExists) {
		platformerrors.WriteConflict(c, message)
		return
	}

	// Use platform error handler for everything else
	platformerrors.WriteError(c, err, logger)
}

// HandleNewError creates and writes a new typed error response.
// Use this for route-level errors like validation or authorization failures.
func HandleNewError(c *gin.Context, errorType platformerrors.ErrorType, message string) {
	status := platformerrors.ErrorTypeToHTTPStatus(errorType)
	c.JSON(status, platformerrors.HTTPErrorResponse{
		Error: &platformerrors.HTTPErrorDetail{
			Message: message,
			Type:    platformerrors.ErrorTypeString(errorType),
		},
	})
}
