package email

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in markdown input is escaped because WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderMarkdown converts a markdown body to HTML for the message's HTML part.
func RenderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// FromMarkdown builds a message whose text part is md and HTML part is its
// rendering.
func FromMarkdown(to []string, subject, md string) (Message, error) {
	body, err := RenderMarkdown(md)
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: body, Text: md}, nil
}
