package ingest

import (
	"fmt"
	"strings"

	"medibot/internal/util"
)

// Window is one overlapping span of document text. Offsets are word
// positions into the normalized text, end exclusive.
type Window struct {
	WordStart int    `json:"word_start"`
	WordEnd   int    `json:"word_end"`
	Text      string `json:"text"`
}

// ChunkWords splits words into windows of size words stepping by
// size-overlap, so each window shares exactly overlap words with its
// predecessor. Ordering is significant: neighbors reconstruct context
// across boundaries.
func ChunkWords(words []string, size, overlap int) []Window {
	if size <= 0 {
		size = 400
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	out := make([]Window, 0, (len(words)+step-1)/step)
	for i := 0; i < len(words); i += step {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		text := strings.TrimSpace(strings.Join(words[i:end], " "))
		if text != "" {
			out = append(out, Window{WordStart: i, WordEnd: end, Text: text})
		}
		if end == len(words) {
			break
		}
	}
	return out
}

// ChunkText sanitizes and splits text into word windows.
func ChunkText(text string, size, overlap int) []Window {
	return ChunkWords(strings.Fields(util.SanitizeText(text)), size, overlap)
}

// ChunkID derives a stable identifier from the chunk's identity: same
// document content and position always yields the same ID, making
// re-ingestion idempotent at the chunk level.
func ChunkID(docID string, index int, text, version string) string {
	contentHash := util.SHA256Hex([]byte(text))
	return util.SHA256Hex([]byte(fmt.Sprintf("%s:%d:%s:%s", docID, index, contentHash, version)))
}
