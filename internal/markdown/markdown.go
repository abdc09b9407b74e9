// Package markdown renders model-produced markdown reports into HTML that is
// safe to insert into the page.
package markdown

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML is passed through by goldmark and removed by the sanitizer, so
// harmless inline markup in a report survives while scripts and event
// handlers do not.
var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(),
		),
	)
	policy = bluemonday.UGCPolicy()
)

// Render converts GitHub-flavoured markdown to sanitized HTML. Single
// newlines become line breaks. Empty input yields "".
func Render(source string) string {
	if strings.TrimSpace(source) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		// goldmark only fails on writer errors; bytes.Buffer has none.
		log.Warn().Err(err).Msg("Markdown conversion failed")
		return ""
	}
	return policy.Sanitize(buf.String())
}
