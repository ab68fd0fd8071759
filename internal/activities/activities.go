package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"medibot/internal/cache"
	"medibot/internal/config"
	"medibot/internal/ingest"
	"medibot/internal/models"
	"medibot/internal/providers"
	"medibot/internal/storage"
	"medibot/internal/util"
	"medibot/internal/vector"
)

type Activities struct {
	cfg         config.Config
	docRepo     *storage.DocumentRepo
	chunkRepo   *storage.ChunkRepo
	auditRepo   *storage.AuditRepo
	registry    *ingest.Registry
	providers   *providers.Manager
	answerCache *cache.AnswerCache
}

func New(cfg config.Config, db *storage.DB, answerCache *cache.AnswerCache) *Activities {
	return &Activities{
		cfg:         cfg,
		docRepo:     storage.NewDocumentRepo(db),
		chunkRepo:   storage.NewChunkRepo(db),
		auditRepo:   storage.NewAuditRepo(db),
		registry:    ingest.NewRegistry(),
		providers:   providers.NewManager(cfg.EmbedProviders, cfg.LLMProviders, cfg.EmbedDim),
		answerCache: answerCache,
	}
}

// ListDocumentsActivity returns every supported document in the kb's input
// directory, in stable order.
func (a *Activities) ListDocumentsActivity(ctx context.Context, in ListDocumentsInput) (ListDocumentsOutput, error) {
	_ = ctx
	entries, err := os.ReadDir(in.InputDir)
	if err != nil {
		return ListDocumentsOutput{}, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if a.registry.Supported(e.Name()) {
			paths = append(paths, filepath.Join(in.InputDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return ListDocumentsOutput{Paths: paths}, nil
}

func (a *Activities) ComputeDocIDActivity(ctx context.Context, in ComputeDocIDInput) (ComputeDocIDOutput, error) {
	_ = ctx
	f, err := os.Open(in.DocPath)
	if err != nil {
		return ComputeDocIDOutput{}, fmt.Errorf("open file for hash: %w", err)
	}
	defer f.Close()
	id, err := util.SHA256HexFromReader(f)
	if err != nil {
		return ComputeDocIDOutput{}, fmt.Errorf("hash file: %w", err)
	}
	return ComputeDocIDOutput{DocID: id}, nil
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	_ = ctx
	f, err := os.Open(in.DocPath)
	if err != nil {
		return ExtractTextOutput{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	res, err := a.registry.Parse(f, filepath.Base(in.DocPath))
	if err != nil {
		return ExtractTextOutput{}, err
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(in.DocPath)), ".")
	return ExtractTextOutput{
		Text:   util.SanitizeText(res.Content),
		Format: format,
		Pages:  res.Pages,
	}, nil
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	_ = ctx
	if in.ChunkSize <= 0 {
		in.ChunkSize = a.cfg.ChunkSize
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		in.ChunkOverlap = a.cfg.ChunkOverlap
	}

	windows := ingest.ChunkText(in.Text, in.ChunkSize, in.ChunkOverlap)
	chunks := make([]ChunkItem, 0, len(windows))
	for idx, w := range windows {
		chunks = append(chunks, ChunkItem{
			ChunkID:    ingest.ChunkID(in.DocID, idx, w.Text, in.Version),
			DocID:      in.DocID,
			KBID:       in.KBID,
			ChunkIndex: idx,
			WordStart:  w.WordStart,
			WordEnd:    w.WordEnd,
			Text:       w.Text,
		})
	}
	return ChunkTextOutput{Chunks: chunks}, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	inputs := make([]string, 0, len(in.Input))
	for _, c := range in.Input {
		inputs = append(inputs, c.Text)
	}
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	if len(vectors) != len(inputs) {
		return EmbedChunksOutput{}, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(inputs))
	}
	return EmbedChunksOutput{
		Vectors:      vectors,
		ProviderName: info.Name,
		Model:        info.Model,
	}, nil
}

func (a *Activities) UpsertChunksActivity(ctx context.Context, in UpsertChunksInput) (UpsertChunksOutput, error) {
	records := make([]storage.ChunkRecord, 0, len(in.Chunks))
	liveIDs := make([]string, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		var embedding *string
		if i < len(in.Vectors) && len(in.Vectors[i]) > 0 {
			lit := vector.ToLiteral(in.Vectors[i])
			embedding = &lit
		}
		records = append(records, storage.ChunkRecord{
			ChunkID:          c.ChunkID,
			DocID:            c.DocID,
			KBID:             c.KBID,
			ChunkIndex:       c.ChunkIndex,
			WordStart:        c.WordStart,
			WordEnd:          c.WordEnd,
			Text:             util.SanitizeText(c.Text),
			EmbeddingVersion: in.EmbeddingVersion,
			EmbeddingVector:  embedding,
		})
		liveIDs = append(liveIDs, c.ChunkID)
	}
	if err := a.chunkRepo.UpsertChunks(ctx, records); err != nil {
		return UpsertChunksOutput{}, err
	}
	out := UpsertChunksOutput{Upserted: len(records)}
	if in.PruneStale && len(in.Chunks) > 0 {
		pruned, err := a.chunkRepo.DeleteStaleChunks(ctx, in.Chunks[0].DocID, liveIDs)
		if err != nil {
			return UpsertChunksOutput{}, err
		}
		out.Pruned = pruned
	}
	return out, nil
}

func (a *Activities) UpdateDocumentStatusActivity(ctx context.Context, in UpdateDocumentStatusInput) error {
	if err := a.docRepo.UpsertDocument(ctx, models.Document{
		DocID:    in.DocID,
		KBID:     in.KBID,
		Filename: in.Filename,
		Format:   in.Format,
		Status:   in.Status,
	}); err != nil {
		return err
	}
	if in.FailReason != "" || in.Status == models.DocStatusFailed {
		if err := a.docRepo.UpdateStatus(ctx, in.DocID, in.Status, in.FailReason); err != nil {
			return err
		}
	}
	if in.ChunkCount > 0 {
		return a.docRepo.SetChunkCount(ctx, in.DocID, in.ChunkCount)
	}
	return nil
}

func (a *Activities) WriteDocArtifactsActivity(ctx context.Context, in WriteDocArtifactsInput) error {
	_ = ctx
	base := filepath.Join(a.cfg.DataOutRoot, in.KBID, "documents", in.DocID)
	if err := util.EnsureDir(base); err != nil {
		return err
	}
	if err := util.WriteJSONAtomic(filepath.Join(base, "metadata.json"), in.Metadata); err != nil {
		return err
	}
	rows := make([]any, 0, len(in.Chunks))
	for _, c := range in.Chunks {
		rows = append(rows, c)
	}
	if err := util.WriteJSONLinesAtomic(filepath.Join(base, "chunks.jsonl"), rows); err != nil {
		return err
	}
	return util.WriteJSONAtomic(filepath.Join(base, "processing_log.json"), in.ProcessingLog)
}

func (a *Activities) WriteKBSummaryActivity(ctx context.Context, in WriteKBSummaryInput) error {
	_ = ctx
	outPath := filepath.Join(a.cfg.DataOutRoot, in.KBID, "kb_summary.json")
	return util.WriteJSONAtomic(outPath, in.Summary)
}

func (a *Activities) LogProviderCallActivity(ctx context.Context, in LogProviderCallInput) error {
	return a.auditRepo.Insert(ctx, storage.ProviderCallRecord{
		CallID:       in.CallID,
		Operation:    in.Operation,
		KBID:         in.KBID,
		DocID:        in.DocID,
		ProviderName: in.ProviderName,
		Model:        in.Model,
		RequestID:    in.RequestID,
		Status:       in.Status,
		ErrorType:    in.ErrorType,
	})
}

// InvalidateAnswerCacheActivity clears cached answers after ingestion so
// questions never get answered from pre-ingest knowledge base state.
func (a *Activities) InvalidateAnswerCacheActivity(ctx context.Context, in InvalidateAnswerCacheInput) error {
	a.answerCache.InvalidateKB(ctx, in.KBID)
	return nil
}
