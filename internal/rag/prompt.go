package rag

import (
	"fmt"
	"strings"

	"medibot/internal/models"
)

// SystemPrompt constrains the model to the retrieved material. Medical
// content makes grounding non-negotiable: an invented dosage is worse than
// no answer.
const SystemPrompt = `You are a careful medical information assistant.
Answer the question using ONLY the context passages provided below.
If the context does not contain the answer, say you do not know.
Do not invent facts, dosages, or recommendations that are not in the context.
Keep the answer concise and cite which passages you used.
This is general information, not a substitute for professional medical advice.`

// BuildContext renders the selected chunks into numbered context passages.
func BuildContext(matches []models.ChunkMatch) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m.Text))
	}
	return out
}

// ExtractiveFallback produces an answer straight from the top passages when
// no generation provider is reachable. It quotes rather than paraphrases.
func ExtractiveFallback(question string, matches []models.ChunkMatch) string {
	var b strings.Builder
	b.WriteString("I could not reach the language model, so here are the most relevant passages from the knowledge base:\n\n")
	for i, m := range matches {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(m.Text))
	}
	b.WriteString("Please review these passages directly; no generated summary is available.")
	return b.String()
}
