package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoocv/internal/changes"
	"github.com/yoockh/yoocv/internal/services"
	"github.com/yoockh/yoocv/internal/utils"
)

type DocumentHandler struct {
	svc services.DocumentService
}

func NewDocumentHandler(svc services.DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Upload accepts multipart/form-data with the document in the "file" field.
func (h *DocumentHandler) Upload(c *gin.Context) {
	const op = "DocumentHandler.Upload"
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "multipart field \"file\" is required", err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unreadable upload", err))
		return
	}
	defer f.Close()

	doc, err := h.svc.Upload(c.Request.Context(), p, services.UploadInput{FileName: fh.Filename, Content: f})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	docs, err := h.svc.List(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	doc, err := h.svc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Status(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	st, err := h.svc.Status(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Download returns a short-lived link to the original upload, or to the JSON
// snapshot of a version when ?version=N is given.
func (h *DocumentHandler) Download(c *gin.Context) {
	const op = "DocumentHandler.Download"
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	version := 0
	if v := c.Query("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "version must be a non-negative integer", err))
			return
		}
		version = n
	}
	url, err := h.svc.DownloadURL(c.Request.Context(), p, c.Param("id"), version)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *DocumentHandler) ReAnalyze(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	st, err := h.svc.ReAnalyze(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, st)
}

type applyEditsRequest struct {
	Commands []changes.Command `json:"commands" binding:"required,min=1,max=50"`
}

func (h *DocumentHandler) ApplyEdits(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req applyEditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "DocumentHandler.ApplyEdits", "invalid request body", err))
		return
	}
	res, err := h.svc.ApplyEdits(c.Request.Context(), p, c.Param("id"), req.Commands)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type tailorRequest struct {
	JobID string `json:"job_id" binding:"required"`
}

func (h *DocumentHandler) Tailor(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req tailorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "DocumentHandler.Tailor", "job_id is required", err))
		return
	}
	doc, err := h.svc.Tailor(c.Request.Context(), p, c.Param("id"), req.JobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, doc)
}

func (h *DocumentHandler) Versions(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	versions, err := h.svc.Versions(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}
