package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lishiyo/twincore-prototype-sub000/internal/domain"
	"github.com/lishiyo/twincore-prototype-sub000/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

// RespondDomainError maps error kinds onto HTTP statuses: validation failures
// are 422, missing resources 404, client-abandoned requests 499, everything
// else 500. An apierr.Error in the chain carries its own status and wins.
func RespondDomainError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Status != 0 {
		RespondError(c, ae.Status, ae.Code, err)
		return
	}
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindInvalidInput:
		RespondError(c, http.StatusUnprocessableEntity, string(kind), err)
	case domain.KindNotFound:
		RespondError(c, http.StatusNotFound, string(kind), err)
	case domain.KindCancelled:
		// Nginx's client-closed-request status; gin has no constant for it.
		RespondError(c, 499, string(kind), err)
	default:
		code := string(kind)
		if code == "" {
			code = "internal"
		}
		RespondError(c, http.StatusInternalServerError, code, err)
	}
}
