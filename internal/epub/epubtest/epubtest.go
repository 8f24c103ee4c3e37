// Package epubtest builds small EPUB files for tests.
package epubtest

import (
	"archive/zip"
	"fmt"
	"os"
	"strings"
	"testing"
)

// Document is one manifest item written into a test book.
type Document struct {
	// Href is the path relative to the package document.
	Href string
	// Body is the inner HTML of the <body> element.
	Body string
	// MediaType defaults to application/xhtml+xml.
	MediaType string
	// Properties is the manifest properties attribute, e.g. "nav".
	Properties string
}

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// Write creates an EPUB at path containing docs in manifest order.
func Write(t testing.TB, path string, docs ...Document) {
	t.Helper()

	var manifest, spine strings.Builder
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": containerXML,
	}
	order := []string{"mimetype", "META-INF/container.xml"}

	for i, d := range docs {
		id := fmt.Sprintf("item%d", i+1)
		mediaType := d.MediaType
		if mediaType == "" {
			mediaType = "application/xhtml+xml"
		}
		props := ""
		if d.Properties != "" {
			props = fmt.Sprintf(` properties="%s"`, d.Properties)
		}
		fmt.Fprintf(&manifest, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"%s/>\n", id, d.Href, mediaType, props)
		fmt.Fprintf(&spine, "    <itemref idref=\"%s\"/>\n", id)

		name := "OEBPS/" + d.Href
		files[name] = XHTML(d.Body)
		order = append(order, name)
	}

	files["OEBPS/content.opf"] = fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
  </metadata>
  <manifest>
%s  </manifest>
  <spine>
%s  </spine>
</package>`, manifest.String(), spine.String())
	order = append(order, "OEBPS/content.opf")

	WriteFiles(t, path, order, files)
}

// WriteFiles writes a raw zip archive with the given entries in order.
func WriteFiles(t testing.TB, path string, order []string, files map[string]string) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create epub: %v", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

// XHTML wraps body in a minimal XHTML document.
func XHTML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>Test Book</title><style>p { margin: 0; }</style></head>
<body>` + body + `</body>
</html>`
}

// Prose returns n sentences of filler text wrapped in a paragraph.
func Prose(n int) string {
	var b strings.Builder
	b.WriteString("<p>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d tells a small part of the story. ", i+1)
	}
	b.WriteString("</p>")
	return b.String()
}
