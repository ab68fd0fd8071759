package ingest

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

// ParseResult is the normalized plain text of one document.
type ParseResult struct {
	Content  string            `json:"content"`
	Pages    int               `json:"pages,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Parser turns one document format into plain text.
type Parser interface {
	Parse(reader io.Reader, filename string) (*ParseResult, error)
	SupportedTypes() []string
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(&PDFParser{})
	r.Register(&DOCXParser{})
	r.Register(&PlainTextParser{})
	r.Register(&MarkdownParser{})
	return r
}

func (r *Registry) Register(p Parser) {
	for _, ext := range p.SupportedTypes() {
		r.parsers[strings.ToLower(ext)] = p
	}
}

// Get resolves the parser for filename or fails with ErrUnsupportedFormat.
func (r *Registry) Get(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return nil, fmt.Errorf("%w: no file extension in %q", ErrUnsupportedFormat, filename)
	}
	p, ok := r.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %s)", ErrUnsupportedFormat, ext, r.SupportedTypes())
	}
	return p, nil
}

// Supported reports whether filename has a registered parser.
func (r *Registry) Supported(filename string) bool {
	_, err := r.Get(filename)
	return err == nil
}

func (r *Registry) SupportedTypes() string {
	types := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		types = append(types, ext)
	}
	return strings.Join(types, ", ")
}

// Parse resolves the parser for filename and extracts text. Empty output
// is an error: an unreadable document must fail loudly, not index nothing.
func (r *Registry) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	p, err := r.Get(filename)
	if err != nil {
		return nil, err
	}
	res, err := p.Parse(reader, filename)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.Content) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoExtractableText, filename)
	}
	return res, nil
}

type PDFParser struct{}

func (p *PDFParser) SupportedTypes() []string { return []string{".pdf"} }

func (p *PDFParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	// The pdf library needs io.ReaderAt plus size, so buffer first.
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf data: %w", err)
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %v", ErrUnsupportedFormat, filename, err)
	}

	pages := r.NumPage()
	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("pdf page extraction failed", "file", filename, "page", i, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}

	return &ParseResult{
		Content:  cleanExtraNewlines(sb.String()),
		Pages:    pages,
		Metadata: map[string]string{"format": "pdf", "pages": fmt.Sprintf("%d", pages)},
	}, nil
}

type DOCXParser struct{}

func (p *DOCXParser) SupportedTypes() []string { return []string{".docx"} }

var reDocxText = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

func (p *DOCXParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read docx data: %w", err)
	}
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open docx %s: %v", ErrUnsupportedFormat, filename, err)
	}
	defer r.Close()

	// The library returns document XML; pull the text runs out of it.
	content := r.Editable().GetContent()
	var sb strings.Builder
	for _, m := range reDocxText.FindAllStringSubmatch(content, -1) {
		if t := m[1]; t != "" {
			sb.WriteString(t)
			sb.WriteString("\n")
		}
	}

	return &ParseResult{
		Content:  cleanExtraNewlines(sb.String()),
		Metadata: map[string]string{"format": "docx"},
	}, nil
}

type PlainTextParser struct{}

func (p *PlainTextParser) SupportedTypes() []string {
	return []string{".txt", ".text", ".csv", ".log"}
}

func (p *PlainTextParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return &ParseResult{
		Content:  strings.TrimSpace(string(data)),
		Metadata: map[string]string{"format": ext},
	}, nil
}

// MarkdownParser strips formatting so headings and links do not pollute chunks.
type MarkdownParser struct{}

var (
	reMarkdownHeader = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reMarkdownBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reMarkdownItalic = regexp.MustCompile(`\*(.+?)\*`)
	reMarkdownCode   = regexp.MustCompile("```[\\s\\S]*?```")
	reMarkdownInline = regexp.MustCompile("`([^`]+)`")
	reMarkdownLink   = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reMarkdownImage  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	reMarkdownHTML   = regexp.MustCompile(`<[^>]+>`)
	reMultiNewlines  = regexp.MustCompile(`\n{3,}`)
)

func (p *MarkdownParser) SupportedTypes() []string { return []string{".md", ".markdown"} }

func (p *MarkdownParser) Parse(reader io.Reader, filename string) (*ParseResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	text := string(data)

	text = reMarkdownCode.ReplaceAllStringFunc(text, func(s string) string {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		return strings.TrimSpace(strings.TrimSuffix(s, "```"))
	})
	text = reMarkdownImage.ReplaceAllString(text, "$1")
	text = reMarkdownLink.ReplaceAllString(text, "$1")
	text = reMarkdownBold.ReplaceAllString(text, "$1")
	text = reMarkdownItalic.ReplaceAllString(text, "$1")
	text = reMarkdownInline.ReplaceAllString(text, "$1")
	text = reMarkdownHeader.ReplaceAllString(text, "")
	text = reMarkdownHTML.ReplaceAllString(text, "")

	return &ParseResult{
		Content:  strings.TrimSpace(cleanExtraNewlines(text)),
		Metadata: map[string]string{"format": "markdown"},
	}, nil
}

func cleanExtraNewlines(text string) string {
	return strings.TrimSpace(reMultiNewlines.ReplaceAllString(text, "\n\n"))
}
