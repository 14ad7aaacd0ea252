package extract

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func Test_File_PlainText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"notes.txt", "readme.md"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := File(path)
		if err != nil {
			t.Fatalf("File(%s): %v", name, err)
		}
		if got != "hello world" {
			t.Errorf("File(%s) = %q", name, got)
		}
	}
}

func Test_File_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "image.png")
	if err := os.WriteFile(path, []byte{0x89}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := File(path)
	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("want UnsupportedFormatError, got %v", err)
	}
	if unsupported.Ext != ".png" {
		t.Errorf("ext = %q, want .png", unsupported.Ext)
	}
}

func Test_File_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := File(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Error("want error for missing file")
	}
}

// writeDocx builds a minimal DOCX archive containing the given document.xml
// body.
func writeDocx(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	entry, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := entry.Write([]byte(body)); err != nil {
		t.Fatalf("write entry: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

func Test_File_Docx(t *testing.T) {
	t.Parallel()
	body := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r><w:r><w:t xml:space="preserve"> continues.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
    <w:p></w:p>
  </w:body>
</w:document>`
	path := writeDocx(t, t.TempDir(), body)

	got, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	paras := strings.Split(strings.TrimSpace(got), "\n\n")
	if len(paras) != 2 {
		t.Fatalf("got %d paragraphs, want 2: %q", len(paras), got)
	}
	if paras[0] != "First paragraph continues." {
		t.Errorf("paragraph 1 = %q", paras[0])
	}
	if paras[1] != "Second paragraph." {
		t.Errorf("paragraph 2 = %q", paras[1])
	}
}

func Test_File_DocxWithoutBody(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	w := zip.NewWriter(f)
	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	f.Close()

	if _, err := File(path); err == nil {
		t.Error("want error for docx without word/document.xml")
	}
}
