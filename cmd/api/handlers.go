package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/shortform/internal/database"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
	"github.com/therealutkarshpriyadarshi/shortform/internal/metrics"
	"github.com/therealutkarshpriyadarshi/shortform/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/shortform/internal/storage"
	"github.com/therealutkarshpriyadarshi/shortform/internal/tracing"
	"github.com/therealutkarshpriyadarshi/shortform/pkg/models"
)

const (
	imagePrefix    = "images/"
	maxImageSize   = 20 << 20
	submitLockTTL  = 30 * time.Second
	defaultPerPage = 20
)

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

// RenderStore persists render records
type RenderStore interface {
	CreateRender(ctx context.Context, render *models.Render) error
	GetRender(ctx context.Context, id string) (*models.Render, error)
	UpdateRender(ctx context.Context, render *models.Render) error
	ListRenders(ctx context.Context, status string, limit, offset int) ([]*models.Render, error)
	Health(ctx context.Context) error
}

// ObjectStore holds uploaded images and rendered outputs
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, objectName string) (bool, error)
	GetURL(ctx context.Context, objectName string) (string, error)
}

// Publisher hands renders to the workers
type Publisher interface {
	PublishRender(ctx context.Context, render *models.Render) error
}

// Progress exposes the title index, stage markers and submission locks
type Progress interface {
	IsRendered(ctx context.Context, source, title string) (bool, error)
	GetStage(ctx context.Context, renderID string) (string, error)
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
	Ping(ctx context.Context) error
}

// StatusReporter summarizes queue and render health
type StatusReporter interface {
	Snapshot() monitoring.Snapshot
	Health() string
	Alerts() []string
}

type API struct {
	renders  RenderStore
	objects  ObjectStore
	queue    Publisher
	progress Progress
	monitor  StatusReporter
	log      *logging.Logger
}

// CreateRenderRequest is the JSON body of POST /api/v1/renders
type CreateRenderRequest struct {
	Title    string `json:"title" form:"title"`
	ImageKey string `json:"image_key" form:"image_key"`
	Source   string `json:"source" form:"source"`
	VoiceID  string `json:"voice_id" form:"voice_id"`
}

// RenderResponse is a render plus links to its outputs
type RenderResponse struct {
	*models.Render
	OutputURL   string `json:"output_url,omitempty"`
	CaptionsURL string `json:"captions_url,omitempty"`
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true
	if err := api.renders.Health(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}
	if err := api.progress.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
}

func (api *API) status(c *gin.Context) {
	snap := api.monitor.Snapshot()
	alerts := api.monitor.Alerts()
	if alerts == nil {
		alerts = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"health":  api.monitor.Health(),
		"alerts":  alerts,
		"metrics": snap,
	})
}

// createRender accepts either JSON referencing an uploaded image or a
// multipart form carrying the image itself.
func (api *API) createRender(c *gin.Context) {
	span, ctx := tracing.StartSpan(c.Request.Context(), "api.create_render")
	var spanErr error
	defer func() { tracing.FinishSpan(span, spanErr) }()

	var req CreateRenderRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	if file, err := c.FormFile("image"); err == nil {
		key, status, err := api.storeImage(ctx, file)
		if err != nil {
			spanErr = err
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		req.ImageKey = key
	}

	if req.ImageKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image or image_key is required"})
		return
	}
	if !imageExts[strings.ToLower(path.Ext(req.ImageKey))] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image must be png, jpg or webp"})
		return
	}
	exists, err := api.objects.Exists(ctx, req.ImageKey)
	if err != nil {
		spanErr = err
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to check image"})
		return
	}
	if !exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("image %s not found", req.ImageKey)})
		return
	}

	rendered, err := api.progress.IsRendered(ctx, req.Source, req.Title)
	if err != nil {
		api.log.WithError(err).Warn("duplicate_check_failed")
	}
	if rendered {
		c.JSON(http.StatusConflict, gin.H{"error": "title already rendered"})
		return
	}

	lock := "submit:" + req.Source + ":" + models.NormalizeTitle(req.Title)
	acquired, err := api.progress.AcquireLock(ctx, lock, submitLockTTL)
	if err != nil {
		api.log.WithError(err).Warn("submit_lock_failed")
	} else if !acquired {
		c.JSON(http.StatusConflict, gin.H{"error": "title is already being submitted"})
		return
	} else {
		defer api.progress.ReleaseLock(context.WithoutCancel(ctx), lock)
	}

	render := &models.Render{
		ID:       uuid.New().String(),
		Title:    req.Title,
		ImageKey: req.ImageKey,
		Source:   req.Source,
		VoiceID:  req.VoiceID,
		Status:   models.RenderStatusQueued,
	}
	tracing.SetTag(span, "render_id", render.ID)

	if err := api.renders.CreateRender(ctx, render); err != nil {
		spanErr = err
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create render"})
		return
	}

	if err := api.queue.PublishRender(ctx, render); err != nil {
		spanErr = err
		render.Status = models.RenderStatusFailed
		render.ErrorMsg = "failed to enqueue"
		if uerr := api.renders.UpdateRender(ctx, render); uerr != nil {
			api.log.WithRenderID(render.ID).WithError(uerr).Error("render_update_failed")
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue render"})
		return
	}

	metrics.RecordRenderSubmitted(render.Source)
	api.log.LogRenderEvent(render.ID, "render_submitted", render.Status, map[string]interface{}{
		"title":  render.Title,
		"source": render.Source,
	})

	c.JSON(http.StatusAccepted, render)
}

func (api *API) storeImage(ctx context.Context, file *multipart.FileHeader) (string, int, error) {
	ext := strings.ToLower(path.Ext(file.Filename))
	if !imageExts[ext] {
		return "", http.StatusBadRequest, errors.New("image must be png, jpg or webp")
	}
	if file.Size > maxImageSize {
		return "", http.StatusRequestEntityTooLarge, errors.New("image too large")
	}

	f, err := file.Open()
	if err != nil {
		return "", http.StatusBadRequest, errors.New("failed to read image")
	}
	defer f.Close()

	key := imagePrefix + uuid.New().String() + ext
	if err := api.objects.Upload(ctx, key, f, file.Size, storage.ContentType(key)); err != nil {
		api.log.WithError(err).Error("image_upload_failed")
		return "", http.StatusServiceUnavailable, errors.New("failed to store image")
	}
	return key, 0, nil
}

func (api *API) getRender(c *gin.Context) {
	ctx := c.Request.Context()

	render, err := api.renders.GetRender(ctx, c.Param("id"))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Render not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get render"})
		return
	}

	resp := RenderResponse{Render: render}

	if render.Status == models.RenderStatusProcessing {
		if stage, err := api.progress.GetStage(ctx, render.ID); err == nil && stage != "" {
			render.Stage = stage
		}
	}

	if render.Status == models.RenderStatusCompleted {
		if render.OutputKey != "" {
			if resp.OutputURL, err = api.objects.GetURL(ctx, render.OutputKey); err != nil {
				api.log.WithRenderID(render.ID).WithError(err).Warn("presign_failed")
			}
		}
		if render.CaptionsKey != "" {
			if resp.CaptionsURL, err = api.objects.GetURL(ctx, render.CaptionsKey); err != nil {
				api.log.WithRenderID(render.ID).WithError(err).Warn("presign_failed")
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (api *API) listRenders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPerPage)))
	if err != nil || limit < 1 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must not be negative"})
		return
	}

	renders, err := api.renders.ListRenders(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list renders"})
		return
	}
	if renders == nil {
		renders = []*models.Render{}
	}

	c.JSON(http.StatusOK, gin.H{
		"renders": renders,
		"limit":   limit,
		"offset":  offset,
	})
}
