package report

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// WritePDF renders Markdown produced by Markdown into a simple PDF at
// outPath. Headings, list items, table rows and links are supported; other
// Markdown is written as plain text.
func WritePDF(markdown string, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 10)
	pdf.AddPage()

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimSpace(scanner.Text())
		switch {
		case s == "":
			pdf.Ln(3)
		case strings.HasPrefix(s, "#"):
			i := 0
			for i < len(s) && s[i] == '#' {
				i++
			}
			text := strings.TrimSpace(s[i:])
			if text == "" {
				continue
			}
			size := 14.0
			if i >= 2 {
				size = 12.0
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, 7, tr(text), "", "L", false)
			pdf.SetFont("Helvetica", "", 10)
		case strings.HasPrefix(s, "|"):
			if strings.Trim(s, "|-: ") == "" {
				continue
			}
			writeRow(pdf, tr, s)
		default:
			writeLine(pdf, tr, s)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return pdf.OutputFileAndClose(outPath)
}

// writeRow lays out a Markdown table row as fixed-width cells.
func writeRow(pdf *gofpdf.Fpdf, tr func(string) string, s string) {
	cells := strings.Split(strings.Trim(s, "|"), " | ")
	if len(cells) == 0 {
		return
	}
	w, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	first := (w - left - right) * 0.45
	rest := (w - left - right - first) / float64(max(1, len(cells)-1))
	for i, c := range cells {
		width := rest
		if i == 0 {
			width = first
		}
		text := strings.ReplaceAll(strings.TrimSpace(c), "\\|", "|")
		if pdf.GetStringWidth(tr(text)) > width-1 {
			runes := []rune(text)
			for len(runes) > 1 && pdf.GetStringWidth(tr(string(runes)+"...")) > width-1 {
				runes = runes[:len(runes)-1]
			}
			text = string(runes) + "..."
		}
		pdf.CellFormat(width, 5, tr(text), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func writeLine(pdf *gofpdf.Fpdf, tr func(string) string, s string) {
	parts := linkRe.FindAllStringSubmatchIndex(s, -1)
	if len(parts) == 0 {
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
		return
	}
	pos := 0
	for _, m := range parts {
		if m[0] > pos {
			pdf.Write(5, tr(s[pos:m[0]]))
		}
		pdf.WriteLinkString(5, tr(s[m[2]:m[3]]), s[m[4]:m[5]])
		pos = m[1]
	}
	if pos < len(s) {
		pdf.Write(5, tr(s[pos:]))
	}
	pdf.Ln(6)
}
