package service

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	ContentFormatHTML     = "html"
	ContentFormatMarkdown = "markdown"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	contentSanitizer = buildContentSanitizer()
)

func buildContentSanitizer() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("span")
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^` + regexp.QuoteMeta(hashtagClass) + `$`)).OnElements("span")
	policy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	return policy
}

// PrepareContent renders markdown when asked to and sanitizes the result so
// that only editor-safe markup reaches the image and hashtag pipeline.
func PrepareContent(raw, format string) (string, error) {
	content := raw
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", ContentFormatHTML:
	case ContentFormatMarkdown:
		var buf bytes.Buffer
		if err := markdownEngine.Convert([]byte(raw), &buf); err != nil {
			return "", err
		}
		content = buf.String()
	default:
		return "", &ValidationError{Message: "unsupported content format", Fields: []string{"contentFormat"}}
	}

	return strings.TrimSpace(contentSanitizer.Sanitize(content)), nil
}
