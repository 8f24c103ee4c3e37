package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// Static errors for container parsing.
var (
	// ErrContainerNotFound is returned when META-INF/container.xml is missing.
	ErrContainerNotFound = errors.New("epub: META-INF/container.xml not found")
	// ErrRootfileNotFound is returned when container.xml lists no rootfile.
	ErrRootfileNotFound = errors.New("epub: no rootfile in container.xml")
	// ErrFileNotFound is returned when a referenced file is not in the archive.
	ErrFileNotFound = errors.New("epub: file not found in archive")
)

const (
	containerPath     = "META-INF/container.xml"
	mediaTypeDocument = "application/xhtml+xml"
)

type containerXML struct {
	XMLName   xml.Name   `xml:"container"`
	Rootfiles []rootfile `xml:"rootfiles>rootfile"`
}

type rootfile struct {
	FullPath  string `xml:"full-path,attr"`
	MediaType string `xml:"media-type,attr"`
}

type packageXML struct {
	XMLName  xml.Name `xml:"package"`
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

// document is a manifest item that carries narrative content.
type document struct {
	id   string
	href string
	// name is the item's path inside the zip archive.
	name string
}

// archive is an opened EPUB container.
type archive struct {
	rc    *zip.ReadCloser
	files map[string]*zip.File
}

func openArchive(p string) (*archive, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("epub: open container: %w", err)
	}

	files := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		files[f.Name] = f
	}

	return &archive{rc: rc, files: files}, nil
}

func (a *archive) Close() error {
	return a.rc.Close()
}

// read returns the content of the named archive entry.
func (a *archive) read(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}

	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", name, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("epub: read %s: %w", name, err)
	}
	return data, nil
}

// documents returns the document items of the package in manifest order.
func (a *archive) documents() ([]document, error) {
	if _, ok := a.files[containerPath]; !ok {
		return nil, ErrContainerNotFound
	}
	raw, err := a.read(containerPath)
	if err != nil {
		return nil, err
	}

	var c containerXML
	if err := xml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("epub: parse container.xml: %w", err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return nil, ErrRootfileNotFound
	}

	opfPath := c.Rootfiles[0].FullPath
	raw, err = a.read(opfPath)
	if err != nil {
		return nil, err
	}

	var pkg packageXML
	if err := xml.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse package document: %w", err)
	}

	base := path.Dir(opfPath)
	var docs []document
	for _, item := range pkg.Manifest.Items {
		if !isDocument(item) {
			continue
		}
		docs = append(docs, document{
			id:   item.ID,
			href: item.Href,
			name: resolve(base, item.Href),
		})
	}

	return docs, nil
}

// isDocument reports whether a manifest item holds narrative XHTML.
// The EPUB 3 navigation document is excluded.
func isDocument(item manifestItem) bool {
	if item.MediaType != mediaTypeDocument {
		return false
	}
	for _, p := range strings.Fields(item.Properties) {
		if p == "nav" {
			return false
		}
	}
	return true
}

// resolve turns a manifest href into an archive entry name.
func resolve(base, href string) string {
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return path.Join(base, href)
}
