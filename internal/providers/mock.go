package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider is a deterministic, offline stand-in used in tests and as the
// terminal fallback when every configured provider is down.
type MockProvider struct {
	Dimension int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 384
	}
	return &MockProvider{Dimension: dim}
}

func (m *MockProvider) info() ProviderInfo {
	return ProviderInfo{Name: "mock", Model: "deterministic-hash"}
}

// deterministicVector derives a unit vector from the sha256 of the input so
// identical text always embeds identically.
func deterministicVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := sha256.Sum256([]byte(text))
	buf := seed[:]
	for i := 0; i < dim; i++ {
		if i*4+4 > len(buf) {
			next := sha256.Sum256(buf)
			buf = append(buf, next[:]...)
		}
		u := binary.BigEndian.Uint32(buf[i*4 : i*4+4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, m.info(), err
	}
	dim := req.Dimension
	if dim <= 0 {
		dim = m.Dimension
	}
	out := make([][]float32, len(req.Inputs))
	for i, in := range req.Inputs {
		out[i] = deterministicVector(in, dim)
	}
	return out, m.info(), nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, m.info(), err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the provided context: ")
	if len(req.Context) > 0 {
		b.WriteString(req.Context[0])
	} else {
		b.WriteString("no supporting material was found.")
	}
	return GenerateResponse{Text: b.String()}, m.info(), nil
}
