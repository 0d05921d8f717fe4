package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/clearcut/internal/domain"
	"github.com/timmy/clearcut/internal/service"
)

// multipartMemory is how much of an upload is held in memory before spilling to temp files.
const multipartMemory = 32 << 20

// JobHandler handles submission and job record endpoints.
type JobHandler struct {
	jobs          JobService
	maxUploadSize int64
}

// NewJobHandler creates a new job handler.
// Parameters:
//   - jobs: orchestrator service.
//   - maxUploadSize: upper bound for an uploaded video in bytes; zero disables the limit.
//
// Returns:
//   - *JobHandler: initialized handler.
func NewJobHandler(jobs JobService, maxUploadSize int64) *JobHandler {
	return &JobHandler{
		jobs:          jobs,
		maxUploadSize: maxUploadSize,
	}
}

// Upload handles POST /api/upload.
// Multipart fields: video (file), url, format, wait (default true).
// Returns 200 with redirect_url when the job finished during the request,
// otherwise 202 with the job id for follow-up polling.
func (h *JobHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload: " + err.Error()})
		return
	}

	wait := true
	if raw := c.DefaultPostForm("wait", c.Query("wait")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wait flag: " + raw})
			return
		}
		wait = parsed
	}

	input, err := readVideoInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload: " + err.Error()})
		return
	}

	out, err := h.jobs.SubmitAndWait(c.Request.Context(), service.SubmitRequest{
		Input:  input,
		Format: c.PostForm("format"),
	}, wait)
	if err != nil {
		writeError(c, err)
		return
	}

	if out.RedirectURL != "" {
		c.JSON(http.StatusOK, gin.H{
			"id":           out.Job.ID,
			"redirect_url": out.RedirectURL,
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":     out.Job.ID,
		"status": out.Job.Status,
		"mode":   out.Job.Mode,
	})
}

func readVideoInput(c *gin.Context) (domain.VideoInput, error) {
	input := domain.VideoInput{URL: c.PostForm("url")}

	header, err := c.FormFile("video")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil
	}
	if err != nil {
		return input, err
	}
	f, err := header.Open()
	if err != nil {
		return input, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return input, err
	}
	input.Filename = header.Filename
	input.Data = data
	return input, nil
}

// ListJobs handles GET /api/jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	records, err := h.jobs.ListJobs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": records,
		"total":   len(records),
	})
}

// GetJob handles GET /api/jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	rec, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// CheckStatus handles GET /api/jobs/:id/status: one provider query, recorded.
func (h *JobHandler) CheckStatus(c *gin.Context) {
	rec, err := h.jobs.CheckStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// UpsertJobRequest is a status report from a client that polled the provider itself.
type UpsertJobRequest struct {
	ID        string `json:"id" binding:"required"`
	Status    string `json:"status" binding:"required"`
	ResultURL string `json:"result_url"`
	Format    string `json:"format"`
	Mode      string `json:"mode"`
}

// UpsertJob handles POST /api/jobs.
func (h *JobHandler) UpsertJob(c *gin.Context) {
	var req UpsertJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	snap := domain.StatusSnapshot{
		ID:        req.ID,
		Status:    domain.ParseJobStatus(req.Status),
		ResultURL: req.ResultURL,
	}
	if req.Format != "" {
		format, ok := domain.ParseOutputFormat(req.Format)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format: " + req.Format})
			return
		}
		snap.Format = format
	}
	switch domain.NotificationMode(req.Mode) {
	case domain.ModePush, domain.ModePull:
		snap.Mode = domain.NotificationMode(req.Mode)
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mode: " + req.Mode})
		return
	}
	if snap.Status != domain.JobStatusDone {
		snap.ResultURL = ""
	}

	rec, err := h.jobs.RecordSnapshot(c.Request.Context(), snap)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
