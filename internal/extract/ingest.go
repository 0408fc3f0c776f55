package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/goindicator/internal/model"
)

// Kind tags the shape of ingested content. It is decided once per fetch.
type Kind int

const (
	KindText Kind = iota
	KindMarkup
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindMarkup:
		return "markup"
	case KindStructured:
		return "structured"
	}
	return "text"
}

// Anchor is an outbound link found in markup.
type Anchor struct {
	Href string
	Text string
}

// Content is a fetched body after shape detection.
type Content struct {
	Kind        Kind
	Raw         string
	ContentType string
	// Structured holds the decoded JSON document when Kind is KindStructured.
	Structured any
	Title      string
	// Text is the searchable text: title, readable body text and one
	// "cell | cell" line per table row.
	Text  string
	Rows  []string
	Links []Anchor
}

// Ingest decides the content shape and prepares text for the extractors.
// A body declared as JSON that fails to decode is a parse error; anything
// else degrades to plain text.
func Ingest(raw []byte, contentType string) (Content, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	c := Content{Raw: string(raw), ContentType: ct}
	trimmed := bytes.TrimSpace(raw)

	declaredJSON := ct == "application/json" || strings.HasSuffix(ct, "+json")
	looksJSON := len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
	if declaredJSON || (looksJSON && !isMarkupType(ct)) {
		doc, err := decodeJSON(trimmed)
		if err == nil {
			c.Kind = KindStructured
			c.Structured = doc
			c.Text = string(trimmed)
			return c, nil
		}
		if declaredJSON {
			return c, fmt.Errorf("decode json: %v: %w", err, model.ErrParse)
		}
	}

	if isMarkupType(ct) || looksLikeMarkup(trimmed) {
		if err := ingestMarkup(&c, raw); err != nil {
			return c, err
		}
		return c, nil
	}

	c.Kind = KindText
	c.Text = normalizeWhitespace(string(raw))
	return c, nil
}

func decodeJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func isMarkupType(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml"
}

func looksLikeMarkup(b []byte) bool {
	head := strings.ToLower(string(b[:min(len(b), 512)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html") || strings.Contains(head, "<body")
}

func ingestMarkup(c *Content, raw []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("parse html: %v: %w", err, model.ErrParse)
	}
	c.Kind = KindMarkup
	c.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		c.Links = append(c.Links, Anchor{Href: href, Text: strings.Join(strings.Fields(s.Text()), " ")})
	})

	doc.Find("script, style, noscript, template").Remove()

	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			if t := strings.Join(strings.Fields(cell.Text()), " "); t != "" {
				cells = append(cells, t)
			}
		})
		if len(cells) >= 2 {
			c.Rows = append(c.Rows, strings.Join(cells, " | "))
		}
	})

	var parts []string
	if c.Title != "" {
		parts = append(parts, c.Title)
	}
	if len(doc.Nodes) > 0 {
		if body := readableText(doc.Nodes[0]); body != "" {
			parts = append(parts, body)
		}
	}
	parts = append(parts, c.Rows...)
	c.Text = strings.Join(parts, "\n")
	return nil
}
