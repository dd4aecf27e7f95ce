package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"html/template"

	lru "github.com/hashicorp/golang-lru"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"fanwiki/internal/logger"
)

// Markdown converts user text to sanitised HTML. Results are cached by
// content hash.
type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	cache  *lru.Cache
}

func NewMarkdown(cacheSize int) (*Markdown, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: bluemonday.UGCPolicy(),
		cache:  cache,
	}, nil
}

func (m *Markdown) Render(src string) template.HTML {
	sum := sha256.Sum256([]byte(src))
	key := hex.EncodeToString(sum[:])
	if cached, ok := m.cache.Get(key); ok {
		return cached.(template.HTML)
	}

	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		clog := logger.Component("render")
		clog.Warn().Err(err).Msg("markdown conversion failed, showing text as is")
		return template.HTML(template.HTMLEscapeString(src))
	}

	out := template.HTML(m.policy.SanitizeBytes(buf.Bytes()))
	m.cache.Add(key, out)
	return out
}

func (m *Markdown) Len() int {
	return m.cache.Len()
}
