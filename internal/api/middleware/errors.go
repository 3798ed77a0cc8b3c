package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoocv/internal/utils"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

// ErrorResponse maps err to its HTTP status and body. Internal errors and
// errors without a code never expose their message.
func ErrorResponse(err error) (int, APIError) {
	status := utils.HTTPStatus(err)
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Code != utils.CodeInternal {
		return status, APIError{Code: ae.Code, Message: ae.Message}
	}
	return status, APIError{Code: utils.CodeInternal, Message: "internal error"}
}

// AbortWithError writes the error response and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	status, body := ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
