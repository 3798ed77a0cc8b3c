package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoocv/internal/services"
)

// AdminHandler serves read-only views for operators. Routes are mounted
// behind middleware.RequireAdmin.
type AdminHandler struct {
	docs services.DocumentService
}

func NewAdminHandler(docs services.DocumentService) *AdminHandler {
	return &AdminHandler{docs: docs}
}

func (h *AdminHandler) GetDocument(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document":   doc,
		"owner_id":   doc.UserID,
		"versions":   doc.Versions,
		"object_key": doc.File.ObjectKey,
	})
}
