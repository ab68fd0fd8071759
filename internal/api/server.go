package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"medibot/internal/cache"
	"medibot/internal/config"
	"medibot/internal/ingest"
	"medibot/internal/models"
	"medibot/internal/providers"
	"medibot/internal/rag"
	"medibot/internal/storage"
	"medibot/internal/util"
	"medibot/internal/vector"
	"medibot/internal/workflows"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

// Asker resolves one question against a knowledge base. topK widens or
// narrows retrieval for that question; non-positive means the configured
// default.
type Asker interface {
	Answer(ctx context.Context, kbID, question string, topK int) (models.Answer, error)
}

// maxAskTopK caps client-supplied retrieval width so one request cannot blow
// up the context assembly.
const maxAskTopK = 20

type Server struct {
	cfg         config.Config
	db          *storage.DB
	kbRepo      *storage.KBRepo
	docRepo     *storage.DocumentRepo
	registry    *ingest.Registry
	asker       Asker
	answerCache *cache.AnswerCache
	temporal    tclient.Client
	provCount   int
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}

	pm := providers.NewManager(cfg.EmbedProviders, cfg.LLMProviders, cfg.EmbedDim)
	gateway := rag.NewEmbeddingGateway(
		providers.NewFailoverEmbedder(pm),
		cfg.EmbedDim, cfg.EmbedBatchSize, cfg.RetryAttempts, cfg.QueryConcurrency,
	)
	orchestrator := rag.NewOrchestrator(
		gateway,
		vector.NewStore(db.Pool, cfg.EmbedDim),
		providers.NewFailoverLLM(pm),
		rag.OrchestratorConfig{
			TopK:               cfg.TopK,
			MinSimilarity:      cfg.MinSimilarity,
			ContextTokenBudget: cfg.ContextTokenBudget,
			RetryAttempts:      cfg.RetryAttempts,
			QueryConcurrency:   cfg.QueryConcurrency,
			ExtractiveFallback: cfg.ExtractiveFallback,
		},
	)

	var answerCache *cache.AnswerCache
	if cfg.AnswerCacheTTL > 0 {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		answerCache = cache.NewAnswerCache(rdb, cfg.AnswerCacheTTL)
	}

	return &Server{
		cfg:         cfg,
		db:          db,
		kbRepo:      storage.NewKBRepo(db),
		docRepo:     storage.NewDocumentRepo(db),
		registry:    ingest.NewRegistry(),
		asker:       orchestrator,
		answerCache: answerCache,
		temporal:    tc,
		provCount:   pm.EmbedProviderCount(),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(withCORS)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/kb", func(r chi.Router) {
		r.Get("/", s.handleListKBs)
		r.Post("/", s.handleCreateKB)
		r.Route("/{kbID}", func(r chi.Router) {
			r.Post("/documents", s.handleUpload)
			r.Get("/documents", s.handleListDocuments)
			r.Post("/ingest", s.handleIngest)
			r.Get("/progress", s.handleProgress)
		})
	})
	r.Post("/ask", s.handleAsk)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListKBs(w http.ResponseWriter, r *http.Request) {
	kbs, err := s.kbRepo.ListKBs(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"knowledge_bases": kbs})
}

func (s *Server) handleCreateKB(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}

	kbID := uuid.NewString()
	if err := s.kbRepo.CreateKB(r.Context(), models.KnowledgeBase{KBID: kbID, Name: req.Name}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := util.EnsureDir(filepath.Join(s.cfg.DataInRoot, kbID)); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := util.EnsureDir(filepath.Join(s.cfg.DataOutRoot, kbID)); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"kb_id": kbID, "name": req.Name})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	// Reject the whole batch before saving anything: partial uploads would
	// leave the kb input directory in a state ingest cannot explain.
	for _, fh := range files {
		if !s.registry.Supported(fh.Filename) {
			writeUnsupportedFormatErr(w, fmt.Errorf("%w: %s", ingest.ErrUnsupportedFormat, fh.Filename))
			return
		}
	}

	inDir := filepath.Join(s.cfg.DataInRoot, kbID)
	if err := util.EnsureDir(inDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	type uploadResult struct {
		Filename string `json:"filename"`
		DocID    string `json:"doc_id"`
	}
	out := make([]uploadResult, 0, len(files))

	for _, fh := range files {
		docID, savedPath, err := saveUploadedFile(inDir, fh)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		format := strings.TrimPrefix(strings.ToLower(filepath.Ext(savedPath)), ".")
		if err := s.docRepo.UpsertDocument(r.Context(), models.Document{
			DocID:    docID,
			KBID:     kbID,
			Filename: filepath.Base(savedPath),
			Format:   format,
			Status:   models.DocStatusPending,
		}); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		out = append(out, uploadResult{Filename: filepath.Base(savedPath), DocID: docID})
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploaded": out})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	docs, err := s.docRepo.ListDocuments(r.Context(), kbID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	wfID := "ingest-" + kbID
	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       wfID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.KnowledgeBaseIngestWorkflow, workflows.KnowledgeBaseIngestInput{
		KBID:                  kbID,
		InputDir:              filepath.Join(s.cfg.DataInRoot, kbID),
		MaxConcurrentChildren: s.cfg.MaxConcurrentDocs,
		EmbedProviders:        s.provCount,
		CooldownSeconds:       s.cfg.ProviderCooldownSecs,
		ChunkSize:             s.cfg.ChunkSize,
		ChunkOverlap:          s.cfg.ChunkOverlap,
		EmbedVersion:          s.cfg.EmbedVersion,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kbID")
	var prog workflows.KnowledgeBaseIngestProgress
	resp, err := s.temporal.QueryWorkflow(r.Context(), "ingest-"+kbID, "", workflows.QueryGetProgress)
	if err != nil {
		// Fallback to DB-derived progress when no active workflow query is available.
		docs, dErr := s.docRepo.ListDocuments(r.Context(), kbID)
		if dErr != nil {
			writeErr(w, http.StatusInternalServerError, dErr)
			return
		}
		per := make(map[string]string, len(docs))
		chunkCounts := make(map[string]int, len(docs))
		done := 0
		failed := 0
		for _, d := range docs {
			per[d.Filename] = d.Status
			chunkCounts[d.Filename] = d.ChunkCount
			if d.Status == models.DocStatusProcessed {
				done++
			}
			if d.Status == models.DocStatusFailed {
				failed++
			}
		}
		writeJSON(w, http.StatusOK, workflows.KnowledgeBaseIngestProgress{
			KBID:        kbID,
			Total:       len(docs),
			Done:        done,
			Failed:      failed,
			PerDocument: per,
			ChunkCounts: chunkCounts,
		})
		return
	}
	if err := resp.Get(&prog); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KBID     string `json:"kb_id"`
		Question string `json:"question"`
		TopK     int    `json:"top_k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.KBID = strings.TrimSpace(req.KBID)
	req.Question = strings.TrimSpace(req.Question)
	if req.KBID == "" || req.Question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("kb_id and question are required"))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if topK > maxAskTopK {
		topK = maxAskTopK
	}

	if ans, ok := s.answerCache.Get(r.Context(), req.KBID, req.Question, topK, s.cfg.MinSimilarity); ok {
		writeJSON(w, http.StatusOK, ans)
		return
	}

	ans, err := s.asker.Answer(r.Context(), req.KBID, req.Question, topK)
	if err != nil {
		writePipelineErr(w, err)
		return
	}
	s.answerCache.Set(r.Context(), req.KBID, req.Question, topK, s.cfg.MinSimilarity, ans)
	writeJSON(w, http.StatusOK, ans)
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (docID, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	docID, err = util.SHA256HexFromReader(io.TeeReader(src, tmp))
	if err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}

	safeName := filepath.Base(fh.Filename)
	finalPath := filepath.Join(dstDir, safeName)
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}

	return docID, finalPath, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
