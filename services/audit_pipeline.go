package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
	"go_audit_backend/repository"
	"go_audit_backend/utils"
)

// ErrInvalidRequest marks caller input rejected before any event is emitted.
var ErrInvalidRequest = errors.New("invalid request")

// ErrVectorizeFailed marks the one-time vectorization step failing; the whole
// batch request fails with it, no partial stream is produced.
var ErrVectorizeFailed = errors.New("vectorize failed")

// EmitFunc delivers one event frame to the caller. Returning an error stops
// the pipeline at its next emission point; this is how consumer back-pressure
// and disconnects reach the producer.
type EmitFunc func(models.StreamEvent) error

// ProgressPublisher mirrors pipeline progress to out-of-band observers.
type ProgressPublisher interface {
	PublishAuditEvent(event *models.AuditProgressEvent) error
}

// DocumentArchiver keeps a copy of the submitted document text.
type DocumentArchiver interface {
	ArchiveDocument(ctx context.Context, fileName, content string) (string, error)
}

const docSeparator = "\n\n----- DOC SPLIT -----\n\n"

// PipelineService coordinates the two-phase batch audit: vectorize the
// documents, extract every requirement, then audit the requirements one at a
// time, streaming typed events throughout. Items are processed strictly in
// order because both external calls key their memory on the session id.
type PipelineService struct {
	extractService *ExtractService
	auditor        AuditStreamer
	vectorizer     Vectorizer
	sessionRepo    repository.SessionRepository
	publisher      ProgressPublisher
	archiver       DocumentArchiver
	conversations  *ConversationStore
	groupSize      int
}

func NewPipelineService(
	extractService *ExtractService,
	auditor AuditStreamer,
	vectorizer Vectorizer,
	sessionRepo repository.SessionRepository,
	publisher ProgressPublisher,
	archiver DocumentArchiver,
	conversations *ConversationStore,
	groupSize int,
) *PipelineService {
	return &PipelineService{
		extractService: extractService,
		auditor:        auditor,
		vectorizer:     vectorizer,
		sessionRepo:    sessionRepo,
		publisher:      publisher,
		archiver:       archiver,
		conversations:  conversations,
		groupSize:      groupSize,
	}
}

// Extract exposes the batch extractor for the extraction-only endpoint.
func (s *PipelineService) Extract(ctx context.Context, text, sessionID string, groupSize int, yield func(models.RequirementItem, models.RequirementMeta) error) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidRequest)
	}
	if groupSize <= 0 {
		groupSize = s.groupSize
	}
	return s.extractService.ExtractAll(ctx, text, sessionID, groupSize, yield)
}

// AuditOne streams one requirement's audit against an already-vectorized
// file, forwarding raw typed chunks.
func (s *PipelineService) AuditOne(ctx context.Context, req models.AuditOneRequest, yield func(models.AuditChunk) error) error {
	if strings.TrimSpace(req.OneRequirement) == "" || req.FileID == "" {
		return fmt.Errorf("%w: one_requirement and file_id are required", ErrInvalidRequest)
	}
	sessionID := utils.NewSessionID()
	defer s.conversations.Clear(sessionID)
	return s.auditor.StreamAudit(ctx, sessionID, req.OneRequirement, req.FileID, yield)
}

// batchRun is the resolved identity of one pipeline invocation.
type batchRun struct {
	sessionID string
	fileID    string
	fileName  string
	userID    int64
}

func resolveRun(fileID, fileName string, userID int64) batchRun {
	run := batchRun{sessionID: utils.NewSessionID(), fileID: fileID, fileName: fileName, userID: userID}
	if run.fileID == "" {
		run.fileID = utils.NewNumericFileID()
	}
	if run.fileName == "" {
		run.fileName = fmt.Sprintf("audit_%s.txt", run.fileID)
	}
	if run.userID == 0 {
		if n, err := strconv.ParseInt(run.fileID, 10, 64); err == nil {
			run.userID = n
		}
	}
	return run
}

// RunBatch drives the full two-phase pipeline for raw document text.
func (s *PipelineService) RunBatch(ctx context.Context, req models.BatchAuditRequest, emit EmitFunc) error {
	if len(req.DocsContents) == 0 {
		return fmt.Errorf("%w: docs_contents must not be empty", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.RequirementsContent) == "" {
		return fmt.Errorf("%w: requirements_content must not be empty", ErrInvalidRequest)
	}
	run := resolveRun(req.FileID, req.FileName, req.UserID)
	defer s.conversations.Clear(run.sessionID)

	merged := strings.Join(req.DocsContents, docSeparator)
	archiveKey := s.archive(ctx, run, merged)

	// vectorization happens before any event; its failure is a request-level
	// failure, not a stream event
	vr, err := s.vectorizer.VectorizeText(ctx, run.fileID, run.userID, run.fileName, merged)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVectorizeFailed, err)
	}
	s.createSession(ctx, run, archiveKey)

	if err := s.openStream(ctx, run, vr, emit); err != nil {
		return err
	}

	groupSize := req.GroupSize
	if groupSize <= 0 {
		groupSize = s.groupSize
	}

	// phase A: extract everything before auditing anything, so the total is
	// known up front
	s.setStatus(ctx, run.sessionID, models.SessionStatusExtracting)
	var items []models.IndexedRequirement
	err = s.extractService.ExtractAll(ctx, req.RequirementsContent, run.sessionID, groupSize, func(item models.RequirementItem, meta models.RequirementMeta) error {
		items = append(items, models.IndexedRequirement{
			Index:       len(items),
			Requirement: item.Content,
			Meta:        meta,
		})
		return ctx.Err()
	})
	if err != nil {
		return err
	}

	return s.auditPhase(ctx, run, items, emit)
}

// RunPreSplit drives the pipeline with caller-provided requirement items and
// pre-split document paragraphs.
func (s *PipelineService) RunPreSplit(ctx context.Context, req models.PreSplitBatchAuditRequest, emit EmitFunc) error {
	if len(req.DocsContents) == 0 {
		return fmt.Errorf("%w: docs_contents must not be empty", ErrInvalidRequest)
	}
	if len(req.Requirements) == 0 {
		return fmt.Errorf("%w: requirements must not be empty", ErrInvalidRequest)
	}
	run := resolveRun(req.FileID, req.FileName, req.UserID)
	defer s.conversations.Clear(run.sessionID)

	archiveKey := s.archive(ctx, run, strings.Join(req.DocsContents, docSeparator))

	vr, err := s.vectorizer.VectorizeTextList(ctx, run.fileID, run.userID, run.fileName, req.DocsContents)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVectorizeFailed, err)
	}
	s.createSession(ctx, run, archiveKey)

	if err := s.openStream(ctx, run, vr, emit); err != nil {
		return err
	}

	items := make([]models.IndexedRequirement, 0, len(req.Requirements))
	for idx, text := range req.Requirements {
		items = append(items, models.IndexedRequirement{Index: idx, Requirement: text})
	}

	return s.auditPhase(ctx, run, items, emit)
}

// openStream emits the session and vectorizeOk frames.
func (s *PipelineService) openStream(ctx context.Context, run batchRun, vr *models.VectorizeResult, emit EmitFunc) error {
	if err := s.emit(emit, run.sessionID, models.EventSession, models.SessionPayload{
		SessionID: run.sessionID,
		FileID:    run.fileID,
	}, 0); err != nil {
		return err
	}

	payload := models.VectorizeOkPayload{
		FileID:          vr.ID,
		UserID:          vr.UserID,
		EmbeddingResult: vr.EmbeddingResult,
	}
	if payload.FileID == "" {
		payload.FileID = run.fileID
	}
	if payload.UserID == 0 {
		payload.UserID = run.userID
	}
	return s.emit(emit, run.sessionID, models.EventVectorizeOk, payload, 0)
}

// auditPhase publishes the full item list, then audits items strictly in
// order. A per-item failure yields auditError followed by auditEnd with the
// partial text; the pipeline always proceeds to the next item.
func (s *PipelineService) auditPhase(ctx context.Context, run batchRun, items []models.IndexedRequirement, emit EmitFunc) error {
	if err := s.emit(emit, run.sessionID, models.EventRequirementsReady, models.RequirementsReadyPayload{
		Total: len(items),
		Items: items,
	}, 0); err != nil {
		return err
	}
	s.setTotal(ctx, run.sessionID, len(items))
	s.setStatus(ctx, run.sessionID, models.SessionStatusAuditing)

	for _, item := range items {
		if err := s.emit(emit, run.sessionID, models.EventAuditBegin, models.AuditBeginPayload{
			Index:       item.Index,
			Requirement: item.Requirement,
			Meta:        item.Meta,
		}, item.Index); err != nil {
			return err
		}

		var parts strings.Builder
		streamErr := s.auditor.StreamAudit(ctx, run.sessionID, item.Requirement, run.fileID, func(chunk models.AuditChunk) error {
			// only text chunks reach the accumulated result; data and
			// metadata chunks are observed for the log
			if chunk.Type == models.ChunkTypeText {
				parts.WriteString(chunk.Text)
				return nil
			}
			if chunk.Type == models.ChunkTypeMetadata {
				logging.Logger.Info("audit metadata", "session_id", run.sessionID, "index", item.Index, "metadata", chunk.Metadata)
			}
			return nil
		})
		if streamErr != nil {
			if err := s.emit(emit, run.sessionID, models.EventAuditError, models.AuditErrorPayload{
				Index:   item.Index,
				Message: streamErr.Error(),
			}, item.Index); err != nil {
				return err
			}
		}

		result := strings.TrimSpace(parts.String())
		if err := s.emit(emit, run.sessionID, models.EventAuditEnd, models.AuditEndPayload{
			Index:  item.Index,
			Result: result,
		}, item.Index); err != nil {
			return err
		}
		s.saveResult(ctx, run.sessionID, item, result, streamErr)
	}

	if err := s.emit(emit, run.sessionID, models.EventDone, models.DonePayload{
		Message:   "completed",
		SessionID: run.sessionID,
		Total:     len(items),
	}, 0); err != nil {
		return err
	}
	s.setStatus(ctx, run.sessionID, models.SessionStatusCompleted)
	return nil
}

func (s *PipelineService) emit(emit EmitFunc, sessionID string, kind models.StreamEventKind, payload interface{}, index int) error {
	if err := emit(models.StreamEvent{Kind: kind, Payload: payload}); err != nil {
		return err
	}
	if s.publisher != nil {
		event := &models.AuditProgressEvent{SessionID: sessionID, Kind: kind, Index: index}
		if err := s.publisher.PublishAuditEvent(event); err != nil {
			logging.Logger.Error("fail publishing progress", "session_id", sessionID, "error", err)
		}
	}
	return nil
}

func (s *PipelineService) archive(ctx context.Context, run batchRun, content string) string {
	if s.archiver == nil {
		return ""
	}
	key, err := s.archiver.ArchiveDocument(ctx, run.fileName, content)
	if err != nil {
		// archive is best-effort; vectorization decides the request's fate
		logging.Logger.Error("fail archiving document", "session_id", run.sessionID, "error", err)
		return ""
	}
	return key
}

func (s *PipelineService) createSession(ctx context.Context, run batchRun, archiveKey string) {
	if s.sessionRepo == nil {
		return
	}
	err := s.sessionRepo.Create(ctx, &models.AuditSession{
		ID:         run.sessionID,
		FileID:     run.fileID,
		UserID:     run.userID,
		FileName:   run.fileName,
		ArchiveKey: archiveKey,
		Status:     models.SessionStatusVectorizing,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		logging.Logger.Error("fail creating session row", "session_id", run.sessionID, "error", err)
	}
}

func (s *PipelineService) setStatus(ctx context.Context, sessionID, status string) {
	if s.sessionRepo == nil {
		return
	}
	if err := s.sessionRepo.UpdateStatus(ctx, sessionID, status); err != nil {
		logging.Logger.Error("fail updating session status", "session_id", sessionID, "error", err)
	}
}

func (s *PipelineService) setTotal(ctx context.Context, sessionID string, total int) {
	if s.sessionRepo == nil {
		return
	}
	if err := s.sessionRepo.UpdateTotal(ctx, sessionID, total); err != nil {
		logging.Logger.Error("fail updating session total", "session_id", sessionID, "error", err)
	}
}

func (s *PipelineService) saveResult(ctx context.Context, sessionID string, item models.IndexedRequirement, result string, streamErr error) {
	if s.sessionRepo == nil {
		return
	}
	row := &models.AuditResult{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		ItemIndex:   item.Index,
		Requirement: item.Requirement,
		Result:      result,
		CreatedAt:   time.Now(),
	}
	if streamErr != nil {
		row.ErrorMessage = streamErr.Error()
	}
	if err := s.sessionRepo.AddResult(ctx, row); err != nil {
		logging.Logger.Error("fail saving audit result", "session_id", sessionID, "index", item.Index, "error", err)
	}
}
