package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// Extractor converts one source into text. Every error it returns is a
// *SourceError.
type Extractor interface {
	Extract(ctx context.Context, source Attachment) (string, error)
}

// PDFExtractor decodes PDF bytes into plain text.
type PDFExtractor struct{}

func (p PDFExtractor) Extract(_ context.Context, source Attachment) (string, error) {
	return p.ExtractBytes(source.Name, source.Data)
}

// ExtractBytes decodes data. The pdf library panics on some malformed
// cross-reference tables, so panics are reported as ParseError.
func (PDFExtractor) ExtractBytes(name string, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", sourceErr(ParseError, name, errors.New("empty document"))
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = sourceErr(ParseError, name, fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", sourceErr(ParseError, name, fmt.Errorf("open pdf: %w", err))
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", sourceErr(ParseError, name, fmt.Errorf("extract pdf text: %w", err))
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", sourceErr(ParseError, name, fmt.Errorf("read pdf text: %w", err))
	}

	return tidyLines(buf.String()), nil
}

// LinkExtractor resolves a user-supplied link, fetches it once and extracts
// the body as a PDF or an HTML page depending on what the server returned.
type LinkExtractor struct {
	fetcher  *Fetcher
	resolver *Resolver
	pdf      PDFExtractor
}

func NewLinkExtractor(fetcher *Fetcher, resolver *Resolver) *LinkExtractor {
	if fetcher == nil {
		fetcher = NewFetcher(nil, 0)
	}
	if resolver == nil {
		resolver = NewResolver(nil, 0, nil)
	}
	return &LinkExtractor{fetcher: fetcher, resolver: resolver}
}

func (l *LinkExtractor) Extract(ctx context.Context, source Attachment) (string, error) {
	// Absolute links skip probing; the fetch reports unreachable hosts itself.
	target, ok := l.resolver.Resolve(ctx, source.Locator, !isAbsoluteHTTP(source.Locator))
	if !ok {
		return "", sourceErr(UnresolvableURL, source.Locator, errors.New("no reachable url for link"))
	}

	page, err := l.fetcher.fetch(ctx, target)
	if err != nil {
		return "", err
	}
	// The served bytes decide, not the link suffix.
	if looksLikePDF(page.ContentType, page.Data) {
		return l.pdf.ExtractBytes(target, page.Data)
	}
	return ExtractHTML(target, bytes.NewReader(page.Data))
}

// ExtractHTML selects the text of every <article> element, falling back to
// <body> when no article carries text, and normalizes the result.
func ExtractHTML(source string, r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", sourceErr(ParseError, source, fmt.Errorf("parse html: %w", err))
	}

	var articles strings.Builder
	for _, node := range findElements(doc, "article") {
		collectText(node, &articles)
	}
	if text := Normalize(articles.String()); text != "" {
		return text, nil
	}

	var body strings.Builder
	for _, node := range findElements(doc, "body") {
		collectText(node, &body)
	}
	return Normalize(body.String()), nil
}

func findElements(n *html.Node, tag string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			found = append(found, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return found
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true, "blockquote": true,
	"pre": true, "table": true, "ul": true, "ol": true, "dd": true, "dt": true, "label": true,
}

func collectText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "svg", "iframe":
			return
		}
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		sb.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if block {
		sb.WriteString("\n")
	}
}
