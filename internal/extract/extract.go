// Package extract pulls plain text out of document files so they can be
// chunked and embedded. Plain text and Markdown pass through untouched;
// PDFs are read page by page with UniPDF; DOCX archives are unzipped and
// their document XML stripped of markup.
package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// UnsupportedFormatError reports a file extension the extractor cannot
// handle.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("extract: unsupported file type %q", e.Ext)
}

var licenseOnce sync.Once

// initLicense applies the UniPDF metered license key from the environment.
// Without a key PDF extraction fails at read time with a license error.
func initLicense() {
	licenseOnce.Do(func() {
		if key := os.Getenv("UNIDOC_LICENSE_KEY"); key != "" {
			_ = license.SetMeteredKey(key)
		}
	})
}

// File reads path and returns its text content based on the file extension.
func File(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("extract: reading %s: %w", path, err)
		}
		return string(content), nil
	case ".pdf":
		return pdfText(path)
	case ".docx":
		return docxText(path)
	default:
		return "", &UnsupportedFormatError{Ext: ext}
	}
}

// pdfText extracts all page text from a PDF, separating pages with blank
// lines so page boundaries become chunk boundaries.
func pdfText(path string) (string, error) {
	initLicense()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: opening %s: %w", path, err)
	}
	defer f.Close()

	reader, err := model.NewPdfReader(f)
	if err != nil {
		return "", fmt.Errorf("extract: reading pdf %s: %w", path, err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("extract: counting pages of %s: %w", path, err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("extract: page %d of %s: %w", i, path, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("extract: page %d of %s: %w", i, path, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("extract: page %d of %s: %w", i, path, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// docxText extracts paragraph text from a DOCX file. DOCX is a zip archive;
// the body lives in word/document.xml as WordprocessingML. Paragraph
// elements become blank-line-separated paragraphs in the output.
func docxText(path string) (string, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("extract: opening docx %s: %w", path, err)
	}
	defer archive.Close()

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("extract: %s has no word/document.xml", path)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("extract: reading docx body of %s: %w", path, err)
	}
	defer rc.Close()

	return wordMLText(rc)
}

// wordMLText streams WordprocessingML, collecting the character data of
// <w:t> runs and emitting a paragraph break at each closing <w:p>.
func wordMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var sb strings.Builder
	var para strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("extract: decoding document xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(para.String()); text != "" {
					sb.WriteString(text)
					sb.WriteString("\n\n")
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	if text := strings.TrimSpace(para.String()); text != "" {
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
