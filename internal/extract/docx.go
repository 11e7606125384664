package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

type docxBackend struct{}

func NewDOCXBackend() Backend { return docxBackend{} }

func (docxBackend) Name() string { return "docx" }

// Extract opens the file as an OOXML archive and pulls text out of
// word/document.xml. Paragraphs become lines; the whole body is a single
// unit since DOCX carries no page boundaries.
func (docxBackend) Extract(data []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", err)
	}

	body, err := readArchiveFile(reader, "word/document.xml")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("not a docx file: word/document.xml missing")
	}

	text, err := parseDocumentXML(body)
	if err != nil {
		return nil, fmt.Errorf("parse docx body: %w", err)
	}

	meta := map[string]string{}
	if core, _ := readArchiveFile(reader, "docProps/core.xml"); core != nil {
		var props struct {
			Title   string `xml:"title"`
			Creator string `xml:"creator"`
		}
		if err := xml.Unmarshal(core, &props); err == nil {
			if t := strings.TrimSpace(props.Title); t != "" {
				meta["title"] = t
			}
			if c := strings.TrimSpace(props.Creator); c != "" {
				meta["author"] = c
			}
		}
	}

	return &Result{Units: []string{text}, Metadata: meta, Backend: "docx"}, nil
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return content, nil
	}
	return nil, nil
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, t := range run.Text {
				b.WriteString(t.Content)
			}
		}
	}
	return b.String(), nil
}
