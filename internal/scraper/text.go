package scraper

import (
	"bytes"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dslipak/pdf"
	"golang.org/x/net/html"
)

// blockElements start and end a line of extracted text. Everything else is
// inline and flows into the surrounding text.
var blockElements = map[string]bool{
	"title": true, "p": true, "div": true, "br": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "dl": true, "dt": true, "dd": true,
	"table": true, "tr": true, "section": true, "article": true, "header": true,
	"footer": true, "nav": true, "main": true, "aside": true, "blockquote": true,
	"pre": true, "figcaption": true, "form": true,
}

// ExtractText strips tags from an HTML document or fragment and returns the visible
// text. Inline markup keeps words and sentences intact; block elements become line
// breaks. script, style, noscript and template contents are dropped.
func ExtractText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node, bool)

	walk = func(n *html.Node, skip bool) {
		block := false
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "svg":
				skip = true
			case "td", "th":
				b.WriteByte(' ')
			}
			block = blockElements[n.Data]
		}
		if block {
			b.WriteByte('\n')
		}

		if n.Type == html.TextNode && !skip {
			b.WriteString(collapseSpace(n.Data))
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}

		if block {
			b.WriteByte('\n')
		}
	}
	walk(doc, false)

	lines := strings.Split(b.String(), "\n")
	filtered := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			filtered = append(filtered, l)
		}
	}
	return sanitizeUTF8(strings.Join(filtered, "\n"))
}

// collapseSpace turns every whitespace run, newlines included, into one space
// and keeps it at the edges so adjacent inline nodes stay separated.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	buf := bytes.NewBuffer(nil)
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}

	return sanitizeUTF8(strings.TrimSpace(buf.String())), nil
}

// sanitizeUTF8 drops invalid bytes so stores with strict text columns accept the chunk.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		b.WriteRune(r)
		s = s[size:]
	}
	return b.String()
}
