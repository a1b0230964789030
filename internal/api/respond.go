package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/ajharbinger/moat-scoring/internal/errors"
)

// statusFor maps an application error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the shared error envelope. Internal failures
// never leak their cause to the client.
func respondError(c *gin.Context, err error) {
	code := apperrors.CodeOf(err)
	status := statusFor(code)

	message := "Internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && status != http.StatusInternalServerError {
		message = appErr.Message
	}
	if code == "" {
		code = apperrors.ErrCodeInternalError
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
		"code":    apperrors.ErrCodeInvalidInput,
		"message": message,
	}})
}

// companyID parses the :id path parameter, writing a 400 on failure.
func companyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid company ID")
		return uuid.Nil, false
	}
	return id, true
}
