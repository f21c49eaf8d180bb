package drafting

import (
	"bytes"
	"fmt"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML renders the draft body (markdown) into a standalone HTML page.
func RenderHTML(d Draft) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(d.Body), &body); err != nil {
		return nil, fmt.Errorf("render draft markdown: %w", err)
	}

	title := html.EscapeString(d.Title)
	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n</head>\n<body>\n<h1>%s</h1>\n", title, title)
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
