// Package markup parses HTML, XHTML and XML documents into a namespace-free
// tree and evaluates XPath location expressions against it. The parser is
// HTML-lenient for all markup types, so broken real-world documents still
// yield a usable tree; element and attribute names come out lowercased.
package markup

import (
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// Types are the MIME types the stripper accepts.
var Types = map[string]bool{
	"application/xml":       true,
	"application/xhtml+xml": true,
	"text/xml":              true,
	"text/html":             true,
}

// IsMarkup reports whether a charset-stripped MIME type is parseable markup.
func IsMarkup(mime string) bool {
	return Types[mime]
}

// Parse decodes the content to UTF-8, parses it leniently and removes
// namespaces. When namespace removal fails the original tree is returned
// unchanged.
func Parse(content []byte, contentType string) (*html.Node, error) {
	decoded, err := DecodeBytes(content, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode markup: %w", err)
	}

	doc, err := htmlquery.Parse(strings.NewReader(string(decoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	return stripNamespaces(doc), nil
}

// ParseFile parses the markup document stored at path.
func ParseFile(path, contentType string) (*html.Node, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markup file: %w", err)
	}
	return Parse(content, contentType)
}

// Query evaluates an XPath location expression and returns the text content
// of the matching nodes in document order. Callers that expect a single
// value take the first match.
func Query(doc *html.Node, expr string) ([]string, error) {
	nodes, err := htmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid location expression %q: %w", expr, err)
	}

	texts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		texts = append(texts, htmlquery.InnerText(node))
	}
	return texts, nil
}

// QueryCompiled is Query for a precompiled expression.
func QueryCompiled(doc *html.Node, expr *xpath.Expr) []string {
	nodes := htmlquery.QuerySelectorAll(doc, expr)
	texts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		texts = append(texts, htmlquery.InnerText(node))
	}
	return texts
}

// stripNamespaces removes namespace declarations and name prefixes from the
// whole tree. On failure the original tree is returned unchanged.
func stripNamespaces(doc *html.Node) (result *html.Node) {
	result = doc
	defer func() {
		if r := recover(); r != nil {
			result = doc
		}
	}()

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			n.Data = localName(n.Data)
			n.Namespace = ""

			attrs := n.Attr[:0]
			for _, attr := range n.Attr {
				if attr.Key == "xmlns" || strings.HasPrefix(attr.Key, "xmlns:") {
					continue
				}
				attr.Key = localName(attr.Key)
				attr.Namespace = ""
				attrs = append(attrs, attr)
			}
			n.Attr = attrs
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return result
}

// localName drops any namespace prefix from an element or attribute name.
func localName(name string) string {
	if _, local, found := strings.Cut(name, ":"); found && local != "" {
		return local
	}
	return name
}
