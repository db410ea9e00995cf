// Package normalize reduces fetched HTML to the visible text the
// change detector fingerprints.
package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Chrome selectors removed before extraction. Navigation and boilerplate
// regions churn between requests without the page meaningfully changing.
const strippedSelectors = "script, style, nav, header, footer, iframe, noscript"

// Text extracts the visible text of an HTML document, one trimmed line
// per text node, joined by newlines. Blank nodes are dropped so that
// whitespace-only markup shuffles do not register as changes.
func Text(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(strippedSelectors).Remove()

	var lines []string
	for _, node := range doc.Selection.Nodes {
		collectText(node, &lines)
	}
	return strings.Join(lines, "\n"), nil
}

func collectText(n *html.Node, lines *[]string) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			*lines = append(*lines, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}
