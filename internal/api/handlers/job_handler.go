package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoocv/internal/jobsearch"
	"github.com/yoockh/yoocv/internal/services"
	"github.com/yoockh/yoocv/internal/utils"
)

type JobHandler struct {
	svc services.JobService
}

func NewJobHandler(svc services.JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

func (h *JobHandler) Search(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var prefs jobsearch.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "JobHandler.Search", "invalid request body", err))
		return
	}
	jobs, err := h.svc.Search(c.Request.Context(), p, prefs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

func (h *JobHandler) Get(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	job, err := h.svc.Get(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) List(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	jobs, err := h.svc.List(c.Request.Context(), p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
