package extract

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Markers bracketing table content so downstream chunking can keep a
// table's rows together.
const (
	tableStartMarker = "[TABLE]"
	tableEndMarker   = "[/TABLE]"
)

// columnGap is the horizontal distance, in PDF points, beyond which two
// text fragments on one row are treated as separate table cells.
const columnGap = 12.0

type pdfBackend struct{}

func NewPDFBackend() Backend { return pdfBackend{} }

func (pdfBackend) Name() string { return "pdf" }

// Extract decodes the PDF page by page. Each page becomes one unit.
// Rows whose fragments are separated by wide horizontal gaps are rendered
// as pipe-delimited table rows between table markers.
func (pdfBackend) Extract(data []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	units := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		units = append(units, renderPage(page))
	}

	meta := map[string]string{"page_count": strconv.Itoa(numPages)}
	info := reader.Trailer().Key("Info")
	if title := docInfoString(info, "Title"); title != "" {
		meta["title"] = title
	}
	if author := docInfoString(info, "Author"); author != "" {
		meta["author"] = author
	}

	return &Result{Units: units, Metadata: meta, Backend: "pdf"}, nil
}

func docInfoString(info pdf.Value, key string) string {
	v := info.Key(key)
	if v.Kind() != pdf.String {
		return ""
	}
	return strings.TrimSpace(v.RawString())
}

// renderPage assembles a page's text from its positioned rows, falling back
// to the flat plain-text stream when row extraction fails.
func renderPage(page pdf.Page) string {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		txt, err := page.GetPlainText(nil)
		if err != nil {
			return ""
		}
		return txt
	}

	var lines []string
	var tableRows []string
	flushTable := func() {
		if len(tableRows) >= 2 {
			lines = append(lines, tableStartMarker)
			lines = append(lines, tableRows...)
			lines = append(lines, tableEndMarker)
		} else {
			// a lone wide-gapped row is more likely layout than a table
			for _, r := range tableRows {
				lines = append(lines, strings.ReplaceAll(strings.Trim(r, "| "), " | ", " "))
			}
		}
		tableRows = tableRows[:0]
	}

	for _, row := range rows {
		cells := rowCells(row)
		if len(cells) >= 3 {
			tableRows = append(tableRows, "| "+strings.Join(cells, " | ")+" |")
			continue
		}
		flushTable()
		if line := strings.TrimSpace(strings.Join(cells, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	flushTable()
	return strings.Join(lines, "\n")
}

// rowCells splits one visual row into cells wherever the horizontal gap
// between adjacent fragments exceeds columnGap.
func rowCells(row *pdf.Row) []string {
	frags := make([]pdf.Text, len(row.Content))
	copy(frags, row.Content)
	sort.SliceStable(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

	var cells []string
	var cur strings.Builder
	var prevEnd float64
	for i, f := range frags {
		if i > 0 && f.X-prevEnd > columnGap {
			if c := strings.TrimSpace(cur.String()); c != "" {
				cells = append(cells, c)
			}
			cur.Reset()
		}
		cur.WriteString(f.S)
		prevEnd = f.X + f.W
	}
	if c := strings.TrimSpace(cur.String()); c != "" {
		cells = append(cells, c)
	}
	return cells
}
