package workflows

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"medibot/internal/activities"
	"medibot/internal/models"
	"medibot/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	QueryGetDocumentStatus = "GetDocumentStatus"
	QueryGetProgress       = "GetProgress"
)

type providerState struct {
	disabledUntil map[int]time.Time
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}}
}

func KnowledgeBaseIngestWorkflow(ctx workflow.Context, input KnowledgeBaseIngestInput) (string, error) {
	progress := KnowledgeBaseIngestProgress{
		KBID:          input.KBID,
		PerDocument:   map[string]string{},
		ChunkCounts:   map[string]int{},
		ChildWorkflow: map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (KnowledgeBaseIngestProgress, error) {
		return progress, nil
	}); err != nil {
		return "", err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	var listOut activities.ListDocumentsOutput
	if err := workflow.ExecuteActivity(ctx, "ListDocumentsActivity", activities.ListDocumentsInput{InputDir: input.InputDir}).Get(ctx, &listOut); err != nil {
		return "", err
	}
	paths := listOut.Paths
	progress.Total = len(paths)
	maxChildren := input.MaxConcurrentChildren
	if maxChildren <= 0 {
		maxChildren = 3
	}

	for i := 0; i < len(paths); i += maxChildren {
		end := i + maxChildren
		if end > len(paths) {
			end = len(paths)
		}
		futures := make([]workflow.ChildWorkflowFuture, 0, end-i)
		childPaths := make([]string, 0, end-i)
		for _, path := range paths[i:end] {
			progress.PerDocument[path] = models.DocStatusProcessing
			workflowID := "doc-" + sanitizeID(input.KBID) + "-" + sanitizeID(filepathBase(path))
			cwo := workflow.ChildWorkflowOptions{WorkflowID: workflowID}
			childCtx := workflow.WithChildOptions(ctx, cwo)
			f := workflow.ExecuteChildWorkflow(childCtx, DocumentProcessWorkflow, DocumentProcessInput{
				KBID:            input.KBID,
				DocPath:         path,
				ChunkSize:       input.ChunkSize,
				ChunkOverlap:    input.ChunkOverlap,
				ChunkVersion:    defaultChunkVersion(input.ChunkVersion),
				EmbedVersion:    defaultEmbedVersion(input.EmbedVersion),
				EmbedProviders:  input.EmbedProviders,
				CooldownSeconds: input.CooldownSeconds,
			})
			futures = append(futures, f)
			childPaths = append(childPaths, path)
			progress.ChildWorkflow[path] = workflowID
		}

		for idx, f := range futures {
			var childRes DocumentProcessResult
			err := f.Get(ctx, &childRes)
			path := childPaths[idx]
			if err != nil {
				progress.Failed++
				progress.PerDocument[path] = models.DocStatusFailed
				continue
			}
			if childRes.Status == models.DocStatusFailed {
				progress.Failed++
			} else {
				progress.Done++
			}
			progress.PerDocument[path] = childRes.Status
			progress.ChunkCounts[path] = childRes.ChunkCount
		}
	}

	// Cached answers reflect the pre-ingest index; drop them before
	// declaring the run complete.
	_ = workflow.ExecuteActivity(ctx, "InvalidateAnswerCacheActivity", activities.InvalidateAnswerCacheInput{KBID: input.KBID}).Get(ctx, nil)

	_ = workflow.ExecuteActivity(ctx, "WriteKBSummaryActivity", activities.WriteKBSummaryInput{
		KBID: input.KBID,
		Summary: map[string]any{
			"kb_id":               input.KBID,
			"total":               progress.Total,
			"done":                progress.Done,
			"failed":              progress.Failed,
			"per_document_status": progress.PerDocument,
			"per_document_chunks": progress.ChunkCounts,
			"generated_at":        workflow.Now(ctx),
		},
	}).Get(ctx, nil)

	return "completed", nil
}

func DocumentProcessWorkflow(ctx workflow.Context, input DocumentProcessInput) (DocumentProcessResult, error) {
	status := DocumentStatus{
		DocPath:     input.DocPath,
		CurrentStep: "init",
		Status:      models.DocStatusProcessing,
		RetryCounts: map[string]int{},
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetDocumentStatus, func() (DocumentStatus, error) {
		return status, nil
	}); err != nil {
		return DocumentProcessResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	filename := filepath.Base(input.DocPath)
	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	providerCount := input.EmbedProviders
	if providerCount <= 0 {
		providerCount = 1
	}
	state := newProviderState()

	status.CurrentStep = "compute_doc_id"
	status.Steps[status.CurrentStep] = "processing"
	var computeOut activities.ComputeDocIDOutput
	if err := workflow.ExecuteActivity(ctx, "ComputeDocIDActivity", activities.ComputeDocIDInput{DocPath: input.DocPath}).Get(ctx, &computeOut); err != nil {
		return DocumentProcessResult{}, err
	}
	status.DocID = computeOut.DocID
	status.Steps[status.CurrentStep] = "done"

	_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocID: computeOut.DocID, KBID: input.KBID, Filename: filename, Status: models.DocStatusProcessing,
	}).Get(ctx, nil)

	status.CurrentStep = "extract_text"
	status.Steps[status.CurrentStep] = "processing"
	var textOut activities.ExtractTextOutput
	if err := workflow.ExecuteActivity(ctx, "ExtractTextActivity", activities.ExtractTextInput{DocPath: input.DocPath}).Get(ctx, &textOut); err != nil {
		reason := ""
		switch {
		case isUnsupportedFormatError(err):
			reason = "unsupported document format"
		case isNoTextError(err):
			reason = "no extractable text found"
		}
		if reason != "" {
			status.Status = models.DocStatusFailed
			status.FailReason = reason
			status.Steps[status.CurrentStep] = "failed"
			_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
				DocID: computeOut.DocID, KBID: input.KBID, Filename: filename,
				Status: models.DocStatusFailed, FailReason: reason,
			}).Get(ctx, nil)
			return DocumentProcessResult{Status: status.Status, DocID: computeOut.DocID}, nil
		}
		return DocumentProcessResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "chunk_text"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkTextOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkTextActivity", activities.ChunkTextInput{
		DocID:        computeOut.DocID,
		KBID:         input.KBID,
		Text:         textOut.Text,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
		Version:      defaultChunkVersion(input.ChunkVersion),
	}).Get(ctx, &chunkOut); err != nil {
		return DocumentProcessResult{}, err
	}
	status.ChunkCount = len(chunkOut.Chunks)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed_chunks"
	status.Steps[status.CurrentStep] = "processing"
	embedOut, err := callEmbedWithFailover(ctx, &state, providerCount, cooldown, activities.EmbedChunksInput{
		Operation: "embed",
		KBID:      input.KBID,
		DocID:     computeOut.DocID,
		Input:     chunkOut.Chunks,
	}, status.RetryCounts)
	if err != nil {
		return DocumentProcessResult{}, err
	}
	status.Providers = append(status.Providers, embedOut.ProviderName)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "upsert_chunks"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpsertChunksActivity", activities.UpsertChunksInput{
		Chunks:           chunkOut.Chunks,
		Vectors:          embedOut.Vectors,
		EmbeddingVersion: defaultEmbedVersion(input.EmbedVersion),
		PruneStale:       true,
	}).Get(ctx, nil); err != nil {
		if isInvalidTextEncodingError(err) {
			status.Status = models.DocStatusFailed
			status.FailReason = "document contains invalid text encoding after extraction"
			status.Steps[status.CurrentStep] = "failed"
			_ = workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
				DocID: computeOut.DocID, KBID: input.KBID, Filename: filename,
				Status: models.DocStatusFailed, FailReason: status.FailReason,
			}).Get(ctx, nil)
			return DocumentProcessResult{Status: status.Status, DocID: computeOut.DocID}, nil
		}
		return DocumentProcessResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "write_artifacts"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "WriteDocArtifactsActivity", activities.WriteDocArtifactsInput{
		KBID:  input.KBID,
		DocID: computeOut.DocID,
		Metadata: map[string]any{
			"doc_id":      computeOut.DocID,
			"filename":    filename,
			"format":      textOut.Format,
			"pages":       textOut.Pages,
			"chunk_count": len(chunkOut.Chunks),
		},
		Chunks:        chunkOut.Chunks,
		ProcessingLog: map[string]any{"status": models.DocStatusProcessed, "steps": status.Steps, "generated_at": workflow.Now(ctx)},
	}).Get(ctx, nil); err != nil {
		return DocumentProcessResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "mark_processed"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "UpdateDocumentStatusActivity", activities.UpdateDocumentStatusInput{
		DocID: computeOut.DocID, KBID: input.KBID, Filename: filename, Format: textOut.Format,
		Status: models.DocStatusProcessed, ChunkCount: len(chunkOut.Chunks),
	}).Get(ctx, nil); err != nil {
		return DocumentProcessResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = models.DocStatusProcessed
	return DocumentProcessResult{
		Status:     status.Status,
		DocID:      computeOut.DocID,
		ChunkCount: len(chunkOut.Chunks),
	}, nil
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedChunksInput, retryCounts map[string]int) (activities.EmbedChunksOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	maxAttempts := providerCount * 4
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			_ = workflow.ExecuteActivity(ctx, "LogProviderCallActivity", activities.LogProviderCallInput{
				Operation: input.Operation, KBID: input.KBID, DocID: input.DocID,
				ProviderName: out.ProviderName, Model: out.Model,
				RequestID: fmt.Sprintf("%s-%d", input.Operation, attempt), Status: "ok",
			}).Get(ctx, nil)
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		_ = workflow.ExecuteActivity(ctx, "LogProviderCallActivity", activities.LogProviderCallInput{
			Operation: input.Operation, KBID: input.KBID, DocID: input.DocID,
			ProviderName: fmt.Sprintf("provider-%d", idx),
			RequestID:    fmt.Sprintf("%s-%d", input.Operation, attempt),
			Status:       "failed", ErrorType: string(errType),
		}).Get(ctx, nil)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch errType {
		case providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.ErrorTransient:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func defaultChunkVersion(v string) string {
	if strings.TrimSpace(v) == "" {
		return "v1"
	}
	return v
}

func defaultEmbedVersion(v string) string {
	if strings.TrimSpace(v) == "" {
		return "v1"
	}
	return v
}

func isNoTextError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func isUnsupportedFormatError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unsupported document format")
}

func isInvalidTextEncodingError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "invalid byte sequence") || strings.Contains(e, "sqlstate 22021")
}

func filepathBase(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) == 0 {
		return path
	}
	return parts[len(parts)-1]
}

func sanitizeID(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", "-")
	s = strings.ReplaceAll(s, ".", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
