package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"medibot/internal/ingest"
	"medibot/internal/rag"
)

type apiError struct {
	Code    string
	Message string
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

// writePipelineErr maps question pipeline failures onto stable error codes.
// The distinction matters to clients: a missing-context answer is final while
// a provider outage is retryable.
func writePipelineErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rag.ErrNoRelevantContext):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": map[string]any{
				"code":    "MB-RAG-4220",
				"message": "No relevant material found in this knowledge base. The question cannot be answered from stored documents.",
			},
		})
	case errors.Is(err, rag.ErrCancelled):
		writeJSON(w, http.StatusRequestTimeout, map[string]any{
			"error": map[string]any{
				"code":    "MB-REQ-4080",
				"message": "The request was cancelled before the answer completed.",
			},
		})
	case errors.Is(err, rag.ErrIndexUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": map[string]any{
				"code":    "MB-IDX-5030",
				"message": "The vector index is unavailable. Check the database and retry.",
			},
		})
	case errors.Is(err, rag.ErrEmbeddingService):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": map[string]any{
				"code":    "MB-EMB-5020",
				"message": "Embedding providers are unavailable. Retry shortly.",
			},
		})
	case errors.Is(err, rag.ErrGenerationService):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": map[string]any{
				"code":    "MB-GEN-5021",
				"message": "Generation providers are unavailable. Retry shortly.",
			},
		})
	default:
		writeErr(w, http.StatusInternalServerError, err)
	}
}

func writeUnsupportedFormatErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ingest.ErrUnsupportedFormat) {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{
			"error": map[string]any{
				"code":    "MB-ING-4150",
				"message": "This document format is not supported. Upload PDF, DOCX, TXT or Markdown.",
			},
		})
		return
	}
	writeErr(w, http.StatusInternalServerError, err)
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "MB-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "MB-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "MB-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "MB-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "MB-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "MB-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "MB-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "MB-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "MB-API-5020"
		msg = "Upstream provider unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "name is required"):
			msg = "Knowledge base name is required."
		case strings.Contains(raw, "kb_id and question are required"):
			msg = "Both knowledge base and question are required."
		case strings.Contains(raw, "no files provided"):
			msg = "No document files were provided."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}
