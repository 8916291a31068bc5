package ingestion

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/ocr-eval/harness/internal/metrics"
	"github.com/ocr-eval/harness/pkg/logger"
)

var ErrNoContent = errors.New("no content extracted from HTML")

var whitespace = regexp.MustCompile(`\s+`)

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "blockquote": true, "pre": true,
	"section": true, "article": true, "tr": true, "td": true, "th": true, "hr": true,
	"h4": true, "h5": true, "h6": true,
}

type Chapter struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type Options struct {
	// Headings selects the elements that open a new chapter.
	Headings string
	// Strip selects elements removed before extraction.
	Strip string
	// IncludeTitle prefixes each chapter's text with its heading.
	IncludeTitle bool
	// MinChars drops chapters shorter than this after whitespace collapsing.
	MinChars int
}

func DefaultOptions() Options {
	return Options{
		Headings:     "h1, h2, h3",
		Strip:        "script, style, nav, footer, aside",
		IncludeTitle: true,
	}
}

// Processor turns an HTML edition of a text into per-chapter plain text,
// the ground-truth side of a dataset.
type Processor struct {
	opts Options
}

func NewProcessor(opts Options) *Processor {
	def := DefaultOptions()
	if opts.Headings == "" {
		opts.Headings = def.Headings
	}
	if opts.Strip == "" {
		opts.Strip = def.Strip
	}
	return &Processor{opts: opts}
}

// ImportHTML splits r with the default options and keys chapters "0".."n-1".
func ImportHTML(r io.Reader) (map[string]string, error) {
	chapters, err := NewProcessor(DefaultOptions()).Chapters(r)
	if err != nil {
		return nil, err
	}
	return Keyed(chapters), nil
}

// Keyed numbers chapters from "0" in document order.
func Keyed(chapters []Chapter) map[string]string {
	texts := make(map[string]string, len(chapters))
	for i, ch := range chapters {
		texts[strconv.Itoa(i)] = ch.Text
	}
	return texts
}

// Chapters returns the document's chapters in order. Text before the first
// heading is front matter and is dropped; a document without headings is a
// single chapter.
func (p *Processor) Chapters(r io.Reader) ([]Chapter, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find(p.opts.Strip).Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	b := &chapterBuilder{}
	p.walk(root, b)
	b.flush()

	raw := b.chapters
	if len(raw) == 0 && strings.TrimSpace(b.preamble.String()) != "" {
		raw = []Chapter{{Text: b.preamble.String()}}
	}

	chapters := make([]Chapter, 0, len(raw))
	for _, ch := range raw {
		title := collapse(ch.Title)
		text := collapse(ch.Text)
		if p.opts.IncludeTitle && title != "" {
			text = strings.TrimSpace(title + " " + text)
		}
		if text == "" || len([]rune(text)) < p.opts.MinChars {
			continue
		}
		chapters = append(chapters, Chapter{Title: title, Text: text})
	}

	if len(chapters) == 0 {
		return nil, ErrNoContent
	}

	metrics.ChaptersImported.Add(float64(len(chapters)))
	logger.Info("HTML edition imported", zap.Int("chapters", len(chapters)))

	return chapters, nil
}

func (p *Processor) walk(s *goquery.Selection, b *chapterBuilder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			b.write(c.Text())
		case c.Is(p.opts.Headings):
			b.start(c.Text())
		case blockElements[name]:
			b.write(" ")
			p.walk(c, b)
			b.write(" ")
		default:
			p.walk(c, b)
		}
	})
}

type chapterBuilder struct {
	chapters []Chapter
	current  *Chapter
	text     strings.Builder
	preamble strings.Builder
}

func (b *chapterBuilder) start(title string) {
	b.flush()
	b.current = &Chapter{Title: title}
}

func (b *chapterBuilder) write(s string) {
	if b.current == nil {
		b.preamble.WriteString(s)
		return
	}
	b.text.WriteString(s)
}

func (b *chapterBuilder) flush() {
	if b.current == nil {
		return
	}
	b.current.Text = b.text.String()
	b.chapters = append(b.chapters, *b.current)
	b.current = nil
	b.text.Reset()
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
