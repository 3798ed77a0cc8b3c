package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoocv/internal/api/middleware"
	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

func writeError(c *gin.Context, err error) {
	status, body := middleware.ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func requirePrincipal(c *gin.Context) (models.Principal, bool) {
	if v, ok := c.Get(middleware.PrincipalKey); ok {
		if p, ok := v.(models.Principal); ok && p.UserID != "" {
			return p, true
		}
	}
	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return models.Principal{}, false
}
