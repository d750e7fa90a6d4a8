package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
	"go_audit_backend/platform/storage"
	"go_audit_backend/repository"
	"go_audit_backend/services"
	"go_audit_backend/utils"
)

type AuditHandler struct {
	pipeline    *services.PipelineService
	sessionRepo repository.SessionRepository
	storage     *storage.Service
	groupSize   int
}

func NewAuditHandler(pipeline *services.PipelineService, sessionRepo repository.SessionRepository, storageService *storage.Service, groupSize int) *AuditHandler {
	return &AuditHandler{
		pipeline:    pipeline,
		sessionRepo: sessionRepo,
		storage:     storageService,
		groupSize:   groupSize,
	}
}

func setSSEHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")
}

// writeFrame writes one SSE frame and flushes it; a false return means the
// client is gone.
func writeFrame(w *bufio.Writer, event string, data interface{}) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		logging.Logger.Error("fail marshaling frame", "event", event, "error", err)
		return false
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return false
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	return w.Flush() == nil
}

// runEventStream runs one pipeline entry as an SSE response. The producer
// writes events onto a bounded channel; the transport drains it. Fatal
// failures before the first event become plain HTTP errors instead of a
// half-open stream.
func (h *AuditHandler) runEventStream(c *fiber.Ctx, run func(ctx context.Context, emit services.EmitFunc) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan models.StreamEvent, 16)
	errCh := make(chan error, 1)

	go func() {
		err := run(ctx, func(event models.StreamEvent) error {
			select {
			case events <- event:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		close(events)
		errCh <- err
	}()

	first, ok := <-events
	if !ok {
		err := <-errCh
		cancel()
		switch {
		case errors.Is(err, services.ErrInvalidRequest):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrVectorizeFailed):
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		default:
			return fiber.NewError(fiber.StatusInternalServerError, "pipeline produced no events")
		}
	}

	setSSEHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if !writeFrame(w, string(first.Kind), first.Payload) {
			return
		}
		for event := range events {
			if !writeFrame(w, string(event.Kind), event.Payload) {
				return
			}
		}
		if err := <-errCh; err != nil {
			logging.Logger.Error("pipeline ended with error", "error", err)
		}
	})
	return nil
}

// BatchAudit is the two-phase entry: extract every requirement from the
// submitted text, vectorize the documents, then audit item by item.
func (h *AuditHandler) BatchAudit(c *fiber.Ctx) error {
	var req models.BatchAuditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return h.runEventStream(c, func(ctx context.Context, emit services.EmitFunc) error {
		return h.pipeline.RunBatch(ctx, req, emit)
	})
}

// PreSplitBatchAudit audits a caller-provided requirement list against
// pre-split document paragraphs.
func (h *AuditHandler) PreSplitBatchAudit(c *fiber.Ctx) error {
	var req models.PreSplitBatchAuditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return h.runEventStream(c, func(ctx context.Context, emit services.EmitFunc) error {
		return h.pipeline.RunPreSplit(ctx, req, emit)
	})
}

// ExtractRequirements streams extraction only: a session frame, one section
// frame per extracted item, then done.
func (h *AuditHandler) ExtractRequirements(c *fiber.Ctx) error {
	var req models.ExtractRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text must not be empty")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = utils.NewSessionID()
	}
	groupSize := req.GroupSize
	if groupSize <= 0 {
		groupSize = h.groupSize
	}

	setSSEHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if !writeFrame(w, "session", fiber.Map{"session_id": sessionID}) {
			return
		}
		err := h.pipeline.Extract(ctx, req.Text, sessionID, groupSize, func(item models.RequirementItem, meta models.RequirementMeta) error {
			if !writeFrame(w, "section", fiber.Map{"data": item, "meta": meta}) {
				return fmt.Errorf("client gone")
			}
			return nil
		})
		if err != nil {
			logging.Logger.Error("fail extraction stream", "session_id", sessionID, "error", err)
			return
		}
		writeFrame(w, "done", fiber.Map{"message": "completed", "session_id": sessionID})
	})
	return nil
}

// AuditOne streams the raw typed chunks of a single requirement's audit.
func (h *AuditHandler) AuditOne(c *fiber.Ctx) error {
	var req models.AuditOneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.OneRequirement) == "" || req.FileID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "one_requirement and file_id are required")
	}

	setSSEHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		err := h.pipeline.AuditOne(ctx, req, func(chunk models.AuditChunk) error {
			if !writeFrame(w, "", chunk) {
				return fmt.Errorf("client gone")
			}
			return nil
		})
		if err != nil {
			logging.Logger.Error("fail audit_one stream", "error", err)
		}
	})
	return nil
}

// GetSession returns the persisted record of a batch run.
func (h *AuditHandler) GetSession(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	session, err := h.sessionRepo.GetByID(c.Context(), sessionID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	results, err := h.sessionRepo.GetResults(c.Context(), sessionID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"session": session,
		"results": results,
	})
}

// GetSessionDocument returns a time-limited download link for the archived
// source document of a session.
func (h *AuditHandler) GetSessionDocument(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	session, err := h.sessionRepo.GetByID(c.Context(), sessionID)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	if session.ArchiveKey == "" {
		return fiber.NewError(fiber.StatusNotFound, "no archived document for this session")
	}
	url, err := h.storage.PresignedDownload(session.ArchiveKey, time.Now().Add(15*time.Minute))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"url": url})
}

// Healthz is the liveness probe.
func Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
