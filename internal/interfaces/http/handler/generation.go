package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apptesis "github.com/tesis/backend/internal/application/thesis"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/infrastructure/logger"
	"github.com/tesis/backend/internal/interfaces/http/dto"
	"github.com/tesis/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const (
	defaultSSEHeartbeat  = 15 * time.Second
	sseEventBufferSize   = 64
	sseEventConnected    = "connected"
	sseEventHeartbeat    = "heartbeat"
	sseEventStreamFailed = "error"
)

// GenerationHandler streams thesis generation over Server-Sent Events
type GenerationHandler struct {
	BaseHandler
	service   *apptesis.GenerationService
	heartbeat time.Duration
}

// NewGenerationHandler creates a GenerationHandler. heartbeat <= 0 uses 15s.
func NewGenerationHandler(service *apptesis.GenerationService, heartbeat time.Duration) *GenerationHandler {
	if heartbeat <= 0 {
		heartbeat = defaultSSEHeartbeat
	}
	return &GenerationHandler{service: service, heartbeat: heartbeat}
}

// Generate streams every requested section of the thesis.
// POST /api/v1/theses/:id/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	ownerID, thesisID, req, ok := h.parse(c)
	if !ok {
		return
	}
	h.stream(c, thesisID, func(ctx context.Context, sink apptesis.Sink) error {
		_, err := h.service.Generate(ctx, ownerID, thesisID, req, sink)
		return err
	})
}

// RegenerateSection streams a single section.
// POST /api/v1/theses/:id/sections/:name/regenerate
func (h *GenerationHandler) RegenerateSection(c *gin.Context) {
	ownerID, thesisID, req, ok := h.parse(c)
	if !ok {
		return
	}
	section := c.Param("name")
	h.stream(c, thesisID, func(ctx context.Context, sink apptesis.Sink) error {
		_, err := h.service.RegenerateSection(ctx, ownerID, thesisID, section, req, sink)
		return err
	})
}

// parse reads the caller, the thesis id and the optional JSON body
func (h *GenerationHandler) parse(c *gin.Context) (uuid.UUID, uuid.UUID, apptesis.GenerateRequest, bool) {
	ownerID, ok := h.currentUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, apptesis.GenerateRequest{}, false
	}
	thesisID, ok := h.pathUUID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, apptesis.GenerateRequest{}, false
	}
	var body dto.GenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, uuid.Nil, apptesis.GenerateRequest{}, false
	}
	return ownerID, thesisID, apptesis.GenerateRequest{
		Provider: body.Provider,
		Model:    body.Model,
		Sections: body.Sections,
	}, true
}

// stream runs the generation in its own goroutine and is the only writer
// of the response. The SSE headers go out with the first event or the
// first heartbeat, so errors raised before that are plain JSON.
func (h *GenerationHandler) stream(c *gin.Context, thesisID uuid.UUID, run func(context.Context, apptesis.Sink) error) {
	ctx := c.Request.Context()
	log := logger.GetGinLogger(c).With(zap.String("thesis_id", thesisID.String()))

	events := make(chan apptesis.Event, sseEventBufferSize)
	result := make(chan error, 1)
	sink := apptesis.SinkFunc(func(ev apptesis.Event) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				log.Error("Generation panicked", zap.Any("panic", r), zap.Stack("stack"))
				err = fmt.Errorf("generation panicked: %v", r)
			}
			close(events)
			result <- err
		}()
		err = run(ctx, sink)
	}()

	w := &sseWriter{c: c}
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	sawDone := false
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.finish(c, w, <-result, sawDone, log)
				return
			}
			if ev.Type == apptesis.EventDone {
				sawDone = true
			}
			w.send(ev.Type, ev)
		case <-ticker.C:
			w.send(sseEventHeartbeat, gin.H{"timestamp": time.Now().Unix()})
		}
	}
}

func (h *GenerationHandler) finish(c *gin.Context, w *sseWriter, err error, sawDone bool, log *zap.Logger) {
	switch {
	case err == nil:
		return
	case !w.started:
		h.HandleError(c, err)
	case sawDone:
		log.Debug("Generation ended with error", zap.Error(err))
	case errors.Is(err, context.Canceled):
		log.Info("Client went away before generation finished")
	default:
		code := dto.ErrCodeInternal
		message := "An unexpected error occurred"
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			code = dto.NormalizeErrorCode(domainErr.Code)
			message = domainErr.Message
		}
		w.send(sseEventStreamFailed, dto.ErrorInfo{Code: code, Message: message, RequestID: getRequestID(c)})
	}
}

// sseWriter frames events as "event/id/data" blocks
type sseWriter struct {
	c       *gin.Context
	seq     int
	started bool
}

func (w *sseWriter) start() {
	header := w.c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.c.Status(http.StatusOK)
	w.started = true
	w.write(sseEventConnected, gin.H{
		"request_id": getRequestID(w.c),
		"timestamp":  time.Now().Unix(),
	})
}

func (w *sseWriter) send(event string, data any) {
	if !w.started {
		w.start()
	}
	w.write(event, data)
}

func (w *sseWriter) write(event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte(`{}`)
	}
	w.seq++
	fmt.Fprintf(w.c.Writer, "event: %s\n", event)
	fmt.Fprintf(w.c.Writer, "id: %d\n", w.seq)
	fmt.Fprintf(w.c.Writer, "data: %s\n\n", payload)
	w.c.Writer.Flush()
}
