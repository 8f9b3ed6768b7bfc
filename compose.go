package gallerypress

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strconv"

	"github.com/a-h/templ"
)

// Fallback display strings substituted at render time. Submission fields are
// never validated against an enumerated set.
const (
	fallbackName      = "Anonymous"
	fallbackCategory  = "Uncategorized"
	fallbackBaseplate = "Unknown"
	fallbackGridSize  = "Unknown"
)

// ArticleTitle builds the article title for a submission.
func ArticleTitle(s Submission) string {
	return fmt.Sprintf("Mosaic by %s", textOr(s.Nickname, fallbackName))
}

// ArticleBody returns a templ component rendering the article body for a
// submission and its resolved image URLs. Pure; performs no I/O.
func ArticleBody(s Submission, cleanURL, logoURL string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		renderArticleBody(&buf, s, cleanURL, logoURL)
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// ComposeArticleBody renders the article body component to an HTML string.
func ComposeArticleBody(s Submission, cleanURL, logoURL string) string {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer cannot fail, so the render error is always nil.
	_ = ArticleBody(s, cleanURL, logoURL).Render(context.Background(), &buf)
	return buf.String()
}

func renderArticleBody(buf *bytes.Buffer, s Submission, cleanURL, logoURL string) {
	name := esc(textOr(s.Nickname, fallbackName))

	buf.WriteString(`<div class="mosaic-submission">`)

	// Image blocks appear only for uploads that resolved to a URL. An asset
	// that failed to produce one is omitted rather than rendered broken.
	if cleanURL != "" {
		buf.WriteString(`<p class="mosaic-image"><img src="` + esc(cleanURL) + `" alt="Mosaic design by ` + name + `"></p>`)
	}
	if logoURL != "" {
		buf.WriteString(`<p class="mosaic-image mosaic-image-logo"><img src="` + esc(logoURL) + `" alt="Mosaic design (logo variant) by ` + name + `"></p>`)
	}

	buf.WriteString(`<ul class="mosaic-details">`)
	writeDetail(buf, "Designer", textOr(s.Nickname, fallbackName))
	writeDetail(buf, "Category", textOr(s.Category, fallbackCategory))
	writeDetail(buf, "Grid size", textOr(s.GridSize, fallbackGridSize))
	writeDetail(buf, "Baseplate", textOr(s.Baseplate, fallbackBaseplate))
	if s.TotalPieces > 0 {
		writeDetail(buf, "Total pieces", strconv.Itoa(s.TotalPieces))
	}
	if s.Timestamp != "" {
		writeDetail(buf, "Submitted", s.Timestamp)
	}
	buf.WriteString(`</ul>`)

	if len(s.ColorCounts) > 0 {
		buf.WriteString(`<table class="mosaic-breakdown"><thead><tr><th>Color</th><th>Pieces</th></tr></thead><tbody>`)
		for _, cc := range sortedColorCounts(s.ColorCounts) {
			buf.WriteString(`<tr><td>` + esc(cc.color) + `</td><td>` + strconv.Itoa(cc.count) + `</td></tr>`)
		}
		buf.WriteString(`</tbody></table>`)
	}

	buf.WriteString(`</div>`)
}

func writeDetail(buf *bytes.Buffer, label, value string) {
	buf.WriteString(`<li><strong>` + esc(label) + `:</strong> ` + esc(value) + `</li>`)
}

type colorCount struct {
	color string
	count int
}

// sortedColorCounts orders the breakdown by descending count for
// readability, breaking ties by color name so output is deterministic.
func sortedColorCounts(m map[string]int) []colorCount {
	out := make([]colorCount, 0, len(m))
	for color, count := range m {
		out = append(out, colorCount{color, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].color < out[j].color
	})
	return out
}

// esc escapes the five reserved HTML characters in user-supplied text.
func esc(s string) string {
	return html.EscapeString(s)
}

func textOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
