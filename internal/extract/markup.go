package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// readableText walks the parsed page and collects paragraph-level text,
// preferring <main> or <article> over <body>. Tables are skipped here; their
// rows are collected separately so every cell boundary survives as " | ".
func readableText(root *html.Node) string {
	content := findFirst(root, "main")
	if content == nil {
		content = findFirst(root, "article")
	}
	if content == nil {
		content = findFirst(root, "body")
	}
	if content == nil {
		content = root
	}
	var b strings.Builder
	walkText(&b, content)
	return normalizeWhitespace(b.String())
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "footer": true, "iframe": true, "svg": true,
	"table": true, "form": true, "button": true, "select": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"br": true, "hr": true, "dd": true, "dt": true, "blockquote": true, "header": true,
}

func walkText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		name := strings.ToLower(n.Data)
		if skippedElements[name] || isConsentBanner(n) {
			return
		}
		if blockElements[name] {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkText(b, c)
		}
		if blockElements[name] {
			b.WriteString("\n")
		} else if name == "span" || name == "td" || name == "a" {
			b.WriteString(" ")
		}
		return
	case html.TextNode:
		b.WriteString(strings.NewReplacer("\t", " ", "\r", " ").Replace(n.Data))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(b, c)
	}
}

// isConsentBanner matches cookie/consent containers by id, class or role.
func isConsentBanner(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "id", "class", "role", "aria-label":
			v := strings.ToLower(attr.Val)
			if strings.Contains(v, "cookie") || strings.Contains(v, "consent") || strings.Contains(v, "gdpr") {
				return true
			}
		}
	}
	return false
}

// normalizeWhitespace trims every line, collapses runs of spaces and keeps at
// most one blank line in a row.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
