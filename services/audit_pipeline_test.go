package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_audit_backend/models"
)

// stubVectorizer acknowledges every upsert unless told to fail.
type stubVectorizer struct {
	failWith  error
	textCalls int
	listCalls int
}

func (v *stubVectorizer) VectorizeText(_ context.Context, fileID string, userID int64, _, _ string) (*models.VectorizeResult, error) {
	v.textCalls++
	if v.failWith != nil {
		return nil, v.failWith
	}
	return &models.VectorizeResult{ID: fileID, UserID: userID, EmbeddingResult: true}, nil
}

func (v *stubVectorizer) VectorizeTextList(_ context.Context, fileID string, userID int64, _ string, _ []string) (*models.VectorizeResult, error) {
	v.listCalls++
	if v.failWith != nil {
		return nil, v.failWith
	}
	return &models.VectorizeResult{ID: fileID, UserID: userID, EmbeddingResult: true}, nil
}

// stubAuditor streams canned text per requirement; failOn marks a requirement
// whose stream dies midway.
type stubAuditor struct {
	failOn string
}

func (a *stubAuditor) StreamAudit(_ context.Context, _, question, _ string, yield func(models.AuditChunk) error) error {
	if err := yield(models.AuditChunk{Type: models.ChunkTypeText, Text: "verdict for "}); err != nil {
		return err
	}
	if question == a.failOn {
		return errors.New("model connection reset")
	}
	if err := yield(models.AuditChunk{Type: models.ChunkTypeText, Text: question}); err != nil {
		return err
	}
	return yield(models.AuditChunk{Type: models.ChunkTypeFinal, Text: "audit turn finished"})
}

func newTestPipeline(inv ExtractInvoker, auditor AuditStreamer, vec Vectorizer) *PipelineService {
	return NewPipelineService(
		NewExtractService(inv),
		auditor,
		vec,
		nil, // no database
		nil, // no pubsub
		nil, // no archive
		newTestConversationStore(),
		10,
	)
}

func collectEvents(t *testing.T, run func(emit EmitFunc) error) []models.StreamEvent {
	t.Helper()
	var events []models.StreamEvent
	err := run(func(ev models.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func kinds(events []models.StreamEvent) []models.StreamEventKind {
	out := make([]models.StreamEventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestRunBatch_EventOrder(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{
		`[{"section_id":"1.1","content":"req one"},{"section_id":"1.2","content":"req two"}]`,
	}}
	pipeline := newTestPipeline(inv, &stubAuditor{}, &stubVectorizer{})

	events := collectEvents(t, func(emit EmitFunc) error {
		return pipeline.RunBatch(context.Background(), models.BatchAuditRequest{
			RequirementsContent: "req one\n\nreq two",
			DocsContents:        []string{"doc body"},
			FileID:              "42",
		}, emit)
	})

	assert.Equal(t, []models.StreamEventKind{
		models.EventSession,
		models.EventVectorizeOk,
		models.EventRequirementsReady,
		models.EventAuditBegin,
		models.EventAuditEnd,
		models.EventAuditBegin,
		models.EventAuditEnd,
		models.EventDone,
	}, kinds(events))

	session := events[0].Payload.(models.SessionPayload)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "42", session.FileID)

	vectorized := events[1].Payload.(models.VectorizeOkPayload)
	assert.Equal(t, "42", vectorized.FileID)
	assert.True(t, vectorized.EmbeddingResult)

	ready := events[2].Payload.(models.RequirementsReadyPayload)
	require.Equal(t, 2, ready.Total)
	assert.Equal(t, "req one", ready.Items[0].Requirement)
	assert.Equal(t, 0, ready.Items[0].Index)
	assert.Equal(t, 1, ready.Items[1].Index)

	begin0 := events[3].Payload.(models.AuditBeginPayload)
	assert.Equal(t, 0, begin0.Index)
	end0 := events[4].Payload.(models.AuditEndPayload)
	assert.Equal(t, 0, end0.Index)
	assert.Equal(t, "verdict for req one", end0.Result)

	begin1 := events[5].Payload.(models.AuditBeginPayload)
	assert.Equal(t, 1, begin1.Index)
	end1 := events[6].Payload.(models.AuditEndPayload)
	assert.Equal(t, "verdict for req two", end1.Result)

	done := events[7].Payload.(models.DonePayload)
	assert.Equal(t, session.SessionID, done.SessionID)
	assert.Equal(t, 2, done.Total)
}

func TestRunBatch_ItemFailureEmitsErrorThenEndWithPartial(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{
		`[{"section_id":"1.1","content":"good req"},{"section_id":"1.2","content":"bad req"}]`,
	}}
	pipeline := newTestPipeline(inv, &stubAuditor{failOn: "bad req"}, &stubVectorizer{})

	events := collectEvents(t, func(emit EmitFunc) error {
		return pipeline.RunBatch(context.Background(), models.BatchAuditRequest{
			RequirementsContent: "text",
			DocsContents:        []string{"doc"},
		}, emit)
	})

	assert.Equal(t, []models.StreamEventKind{
		models.EventSession,
		models.EventVectorizeOk,
		models.EventRequirementsReady,
		models.EventAuditBegin,
		models.EventAuditEnd,
		models.EventAuditBegin,
		models.EventAuditError,
		models.EventAuditEnd,
		models.EventDone,
	}, kinds(events))

	failure := events[6].Payload.(models.AuditErrorPayload)
	assert.Equal(t, 1, failure.Index)
	assert.Contains(t, failure.Message, "connection reset")

	// the end frame still carries whatever text streamed before the failure
	partial := events[7].Payload.(models.AuditEndPayload)
	assert.Equal(t, 1, partial.Index)
	assert.Equal(t, "verdict for", partial.Result)
}

func TestRunBatch_ValidatesRequest(t *testing.T) {
	pipeline := newTestPipeline(&scriptedInvoker{}, &stubAuditor{}, &stubVectorizer{})
	noEmit := func(models.StreamEvent) error {
		t.Fatal("no event expected")
		return nil
	}

	err := pipeline.RunBatch(context.Background(), models.BatchAuditRequest{
		RequirementsContent: "text",
	}, noEmit)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = pipeline.RunBatch(context.Background(), models.BatchAuditRequest{
		DocsContents: []string{"doc"},
	}, noEmit)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRunBatch_VectorizeFailureBeforeAnyEvent(t *testing.T) {
	pipeline := newTestPipeline(&scriptedInvoker{}, &stubAuditor{}, &stubVectorizer{failWith: errors.New("knowledge service down")})

	var events []models.StreamEvent
	err := pipeline.RunBatch(context.Background(), models.BatchAuditRequest{
		RequirementsContent: "text",
		DocsContents:        []string{"doc"},
	}, func(ev models.StreamEvent) error {
		events = append(events, ev)
		return nil
	})

	assert.ErrorIs(t, err, ErrVectorizeFailed)
	assert.Empty(t, events)
}

func TestRunBatch_EmptyExtractionStillCompletes(t *testing.T) {
	inv := &scriptedInvoker{responses: []string{"[]"}}
	pipeline := newTestPipeline(inv, &stubAuditor{}, &stubVectorizer{})

	events := collectEvents(t, func(emit EmitFunc) error {
		return pipeline.RunBatch(context.Background(), models.BatchAuditRequest{
			RequirementsContent: "text",
			DocsContents:        []string{"doc"},
		}, emit)
	})

	assert.Equal(t, []models.StreamEventKind{
		models.EventSession,
		models.EventVectorizeOk,
		models.EventRequirementsReady,
		models.EventDone,
	}, kinds(events))
	assert.Equal(t, 0, events[2].Payload.(models.RequirementsReadyPayload).Total)
}

func TestRunPreSplit_UsesProvidedRequirements(t *testing.T) {
	vec := &stubVectorizer{}
	pipeline := newTestPipeline(&scriptedInvoker{}, &stubAuditor{}, vec)

	events := collectEvents(t, func(emit EmitFunc) error {
		return pipeline.RunPreSplit(context.Background(), models.PreSplitBatchAuditRequest{
			Requirements: []string{"first", "second", "third"},
			DocsContents: []string{"para a", "para b"},
		}, emit)
	})

	assert.Equal(t, 1, vec.listCalls)
	assert.Equal(t, 0, vec.textCalls)

	ready := events[2].Payload.(models.RequirementsReadyPayload)
	require.Equal(t, 3, ready.Total)
	for i, want := range []string{"first", "second", "third"} {
		assert.Equal(t, want, ready.Items[i].Requirement)
		assert.Equal(t, i, ready.Items[i].Index)
	}
	assert.Equal(t, models.EventDone, events[len(events)-1].Kind)
}

func TestRunPreSplit_ValidatesRequest(t *testing.T) {
	pipeline := newTestPipeline(&scriptedInvoker{}, &stubAuditor{}, &stubVectorizer{})
	err := pipeline.RunPreSplit(context.Background(), models.PreSplitBatchAuditRequest{
		DocsContents: []string{"doc"},
	}, func(models.StreamEvent) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAuditOne_RequiresRequirementAndFile(t *testing.T) {
	pipeline := newTestPipeline(&scriptedInvoker{}, &stubAuditor{}, &stubVectorizer{})

	err := pipeline.AuditOne(context.Background(), models.AuditOneRequest{FileID: "42"}, func(models.AuditChunk) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidRequest)

	err = pipeline.AuditOne(context.Background(), models.AuditOneRequest{OneRequirement: "req"}, func(models.AuditChunk) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAuditOne_StreamsChunks(t *testing.T) {
	pipeline := newTestPipeline(&scriptedInvoker{}, &stubAuditor{}, &stubVectorizer{})

	var chunks []models.AuditChunk
	err := pipeline.AuditOne(context.Background(), models.AuditOneRequest{
		OneRequirement: "single req",
		FileID:         "42",
	}, func(chunk models.AuditChunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, models.ChunkTypeText, chunks[0].Type)
	assert.Equal(t, models.ChunkTypeFinal, chunks[2].Type)
}

func TestResolveRun_Defaults(t *testing.T) {
	run := resolveRun("", "", 0)
	assert.NotEmpty(t, run.sessionID)
	assert.NotEmpty(t, run.fileID)
	assert.Equal(t, fmt.Sprintf("audit_%s.txt", run.fileID), run.fileName)

	explicit := resolveRun("77", "bid.txt", 9)
	assert.Equal(t, "77", explicit.fileID)
	assert.Equal(t, "bid.txt", explicit.fileName)
	assert.Equal(t, int64(9), explicit.userID)
}
