// Package certificate turns the base64 certificate returned by RCI into a
// PDF file on local disk and checks that the result really is a PDF.
package certificate

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	dErrors "gmq/pkg/domain-errors"
)

var pdfMagic = []byte("%PDF-")

// Renderer writes certificates under a base directory.
type Renderer struct {
	dir string
}

// NewRenderer creates a renderer rooted at dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{dir: dir}
}

// PathFor returns the file path of transaction id's certificate.
func (r *Renderer) PathFor(id string) string {
	return filepath.Join(r.dir, id+".pdf")
}

// DecodeAndWrite decodes b64 and writes it to path with owner-only permissions.
func (r *Renderer) DecodeAndWrite(b64, path string) error {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return invalid("certificate is not valid base64", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "create certificate directory")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "write certificate")
	}
	return nil
}

// ValidateIsPDF checks the magic number and the sniffed content type.
func (r *Renderer) ValidateIsPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "open certificate")
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read certificate")
	}
	head = head[:n]
	if !bytes.HasPrefix(head, pdfMagic) || http.DetectContentType(head) != "application/pdf" {
		return invalid("certificate file is not a PDF", nil)
	}
	return nil
}

// invalid marks content that RCI may return correctly on the next fetch, so
// it stays retryable.
func invalid(msg string, err error) error {
	return &dErrors.Error{Code: dErrors.CodeInternal, AppCode: dErrors.AppInvalidCertificate, Message: msg, Err: err}
}

// Exists reports whether path is present.
func (r *Renderer) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Read returns the certificate bytes.
func (r *Renderer) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read certificate")
	}
	return data, nil
}

// Remove deletes path. Only .pdf files are ever removed, and a file that is
// already gone is not an error.
func (r *Renderer) Remove(path string) error {
	if filepath.Ext(path) != ".pdf" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "remove certificate")
	}
	return nil
}
