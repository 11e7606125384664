package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend returns a canned result or error; used to drive the cascade
// without real file formats.
type fakeBackend struct {
	name  string
	units []string
	err   error
}

func (f fakeBackend) Name() string { return f.name }

func (f fakeBackend) Extract(data []byte) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Units: f.units, Backend: f.name}, nil
}

func TestCascadeEmptyInput(t *testing.T) {
	c := NewCascade(fakeBackend{name: "a", units: []string{"some text"}})
	_, err := c.Extract(nil)
	require.Error(t, err)
	var exErr *ExtractionError
	assert.ErrorAs(t, err, &exErr)
}

func TestCascadeShortCircuitsOnQuality(t *testing.T) {
	good := strings.Repeat("The quarterly leave policy covers remote employees. ", 10)
	c := NewCascade(
		fakeBackend{name: "first", units: []string{good}},
		fakeBackend{name: "second", units: []string{"never consulted"}},
	)
	res, err := c.Extract([]byte("input"))
	require.NoError(t, err)
	assert.Equal(t, "first", res.Backend)
	assert.GreaterOrEqual(t, res.Quality, QualityThreshold)
}

func TestCascadeKeepsBestBelowThreshold(t *testing.T) {
	c := NewCascade(
		fakeBackend{name: "weak", units: []string{strings.Repeat("$", 32) + " " + strings.Repeat("%", 16)}},
		fakeBackend{name: "weaker", units: []string{strings.Repeat("@", 40)}},
	)
	res, err := c.Extract([]byte("input"))
	require.NoError(t, err)
	assert.Equal(t, "weak", res.Backend)
	assert.Less(t, res.Quality, QualityThreshold)
}

func TestCascadeAllBackendsFail(t *testing.T) {
	c := NewCascade(
		fakeBackend{name: "a", err: assert.AnError},
		fakeBackend{name: "b", err: assert.AnError},
	)
	_, err := c.Extract([]byte("input"))
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

// Uploading a multi-page document with a repeated footer yields text with
// the footer removed from every page.
func TestCascadeRemovesRepeatedFooter(t *testing.T) {
	page := func(n, total string, body string) string {
		return body + "\nPage " + n + " of " + total
	}
	body := "This section describes the travel reimbursement process in detail for all staff."
	c := NewCascade(fakeBackend{name: "pdf", units: []string{
		page("1", "4", body),
		page("2", "4", body),
		page("3", "4", body),
		page("4", "4", body),
	}})

	res, err := c.Extract([]byte("input"))
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "Page 1 of 4")
	assert.NotContains(t, res.Text, "Page 3 of 4")
	assert.Contains(t, res.Text, "travel reimbursement")
}

// A three-page document is enough for footer detection: "Page N of 3" is
// removed from all three pages.
func TestCascadeRemovesFooterOnThreePages(t *testing.T) {
	c := NewCascade(fakeBackend{name: "pdf", units: []string{
		"Expenses must be filed within thirty days of travel completion.\nPage 1 of 3",
		"Managers approve reimbursements above the standard daily allowance.\nPage 2 of 3",
		"Receipts are required for every individual expense item claimed.\nPage 3 of 3",
	}})

	res, err := c.Extract([]byte("input"))
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "Page 1 of 3")
	assert.NotContains(t, res.Text, "Page 2 of 3")
	assert.NotContains(t, res.Text, "Page 3 of 3")
	assert.Contains(t, res.Text, "thirty days")
	assert.Contains(t, res.Text, "daily allowance")
	assert.Contains(t, res.Text, "Receipts are required")
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"smart quotes", "“hello” and ‘world’", `"hello" and 'world'`},
		{"dashes", "2019–2022 — great", "2019-2022 - great"},
		{"bullets", "• first item", "- first item"},
		{"control chars", "abc\x00\x07def", "abcdef"},
		{"dehyphenation", "compen-\nsation policy", "compensation policy"},
		{"whitespace collapse", "a   b\t\tc\n\n\n\nd", "a b c\n\nd"},
		{"crlf", "line one\r\nline two", "line one\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestStripRepeatedEdgeLinesTooFewUnits(t *testing.T) {
	units := []string{"Header\nbody one", "Header\nbody two"}
	assert.Equal(t, units, StripRepeatedEdgeLines(units))
}

// A substantive sentence repeated at the top of every page is content, not
// a header, and survives stripping; only the footer-shaped line goes.
func TestStripRepeatedEdgeLinesKeepsLongBodyLines(t *testing.T) {
	body := "This section describes the travel reimbursement process in detail for all staff."
	units := []string{
		body + "\nPage 1 of 4",
		body + "\nPage 2 of 4",
		body + "\nPage 3 of 4",
		body + "\nPage 4 of 4",
	}
	got := StripRepeatedEdgeLines(units)
	require.Len(t, got, 4)
	for i, u := range got {
		assert.NotContains(t, u, "Page", "unit %d", i)
		assert.Contains(t, u, "travel reimbursement", "unit %d", i)
	}
}

func TestStripRepeatedEdgeLinesDigitNormalized(t *testing.T) {
	units := []string{
		"ACME Corp\nfirst page body\nPage 1",
		"ACME Corp\nsecond page body\nPage 2",
		"ACME Corp\nthird page body\nPage 3",
		"ACME Corp\nfourth page body\nPage 4",
	}
	got := StripRepeatedEdgeLines(units)
	require.Len(t, got, 4)
	for i, u := range got {
		assert.NotContains(t, u, "ACME", "unit %d", i)
		assert.NotContains(t, u, "Page", "unit %d", i)
		assert.Contains(t, u, "page body")
	}
}

func TestStripRepeatedEdgeLinesBelowRatio(t *testing.T) {
	units := []string{
		"Footer\nalpha", "Footer\nbeta", "gamma text", "delta text", "epsilon text",
	}
	got := StripRepeatedEdgeLines(units)
	assert.Contains(t, got[0], "Footer")
}

func TestQualityScore(t *testing.T) {
	prose := strings.Repeat("Employees accrue vacation days at a fixed monthly rate. ", 10)
	garbage := strings.Repeat("�� � ", 50)

	proseScore := QualityScore(prose, 1)
	garbageScore := QualityScore(garbage, 1)

	assert.Greater(t, proseScore, QualityThreshold)
	assert.Greater(t, proseScore, garbageScore)
	assert.Equal(t, 0.0, QualityScore("   ", 3))
}

func TestQualityScorePenalizesSparsePages(t *testing.T) {
	dense := QualityScore(strings.Repeat("normal words here ", 100), 2)
	sparse := QualityScore("normal words here", 50)
	assert.Greater(t, dense, sparse)
}

func buildDOCX(t *testing.T, documentXML, coreXML string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	doc, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = doc.Write([]byte(documentXML))
	require.NoError(t, err)
	if coreXML != "" {
		core, err := w.Create("docProps/core.xml")
		require.NoError(t, err)
		_, err = core.Write([]byte(coreXML))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDOCXBackend(t *testing.T) {
	docXML := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>Remote Work Policy</w:t></w:r></w:p>
<w:p><w:r><w:t>Employees may work remotely up to three days per week.</w:t></w:r></w:p>
</w:body>
</w:document>`
	coreXML := `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
<dc:title>Remote Work Policy</dc:title>
<dc:creator>HR Team</dc:creator>
</cp:coreProperties>`

	res, err := NewDOCXBackend().Extract(buildDOCX(t, docXML, coreXML))
	require.NoError(t, err)
	require.Len(t, res.Units, 1)
	assert.Contains(t, res.Units[0], "three days per week")
	assert.Equal(t, "Remote Work Policy", res.Metadata["title"])
	assert.Equal(t, "HR Team", res.Metadata["author"])
}

func TestDOCXBackendRejectsNonZip(t *testing.T) {
	_, err := NewDOCXBackend().Extract([]byte("plain text, not an archive"))
	assert.Error(t, err)
}

func TestPlainTextBackend(t *testing.T) {
	res, err := NewPlainTextBackend().Extract([]byte("first page\ftext on second page"))
	require.NoError(t, err)
	assert.Len(t, res.Units, 2)

	_, err = NewPlainTextBackend().Extract([]byte{0xff, 0xfe, 0x00, 0x41})
	assert.Error(t, err)
}

func TestPDFBackendRejectsGarbage(t *testing.T) {
	_, err := NewPDFBackend().Extract([]byte("definitely not a pdf"))
	assert.Error(t, err)
}
