package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"askbridge/internal/models"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeUnsupportedTool = "UNSUPPORTED_TOOL"
	CodeInternalError   = "INTERNAL_ERROR"
)

// maxBodyBytes caps the size of an /ask body.
const maxBodyBytes = 1 << 20

// Asker runs one ask cycle.
type Asker interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResult, error)
}

// Handler wires HTTP routes to the assistant service.
type Handler struct {
	assistant Asker
	logger    zerolog.Logger
	now       func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(assistant Asker, logger zerolog.Logger) *Handler {
	return &Handler{
		assistant: assistant,
		logger:    logger.With().Str("component", "api").Logger(),
		now:       time.Now,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.GET("/healthz", h.healthz)
	router.POST("/ask", h.ask)
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func (h *Handler) ask(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: errorDetail{Code: CodeInvalidRequest, Message: msgBodyTooLarge}})
			return
		}
		h.writeError(c, &models.InvalidRequestError{Reason: msgInvalidJSON})
		return
	}
	req, err := parseAskRequest(body)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.assistant.Ask(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) healthz(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = "unknown"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"cors": gin.H{
			"origin":  origin,
			"allowed": true,
		},
		"timestamp": h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// writeError maps err to a status and error code. Unclassified errors are
// logged and reported as INTERNAL_ERROR with their message.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, CodeInternalError
	switch {
	case errors.Is(err, models.ErrUnsupportedTool):
		status, code = http.StatusBadRequest, CodeUnsupportedTool
	case errors.Is(err, models.ErrInvalidRequest):
		status, code = http.StatusBadRequest, CodeInvalidRequest
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, errorResponse{Error: errorDetail{Code: code, Message: err.Error()}})
}
