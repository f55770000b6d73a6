package certificate

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "gmq/pkg/domain-errors"
)

const samplePDF = "%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n"

func TestDecodeAndWriteValidPDF(t *testing.T) {
	r := NewRenderer(filepath.Join(t.TempDir(), "certs"))
	path := r.PathFor("PRCAP1")

	require.NoError(t, r.DecodeAndWrite(base64.StdEncoding.EncodeToString([]byte(samplePDF)), path))
	require.NoError(t, r.ValidateIsPDF(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.True(t, r.Exists(path))

	data, err := r.Read(path)
	require.NoError(t, err)
	assert.Equal(t, samplePDF, string(data))
}

func TestDecodeAndWriteRejectsBadBase64(t *testing.T) {
	r := NewRenderer(t.TempDir())
	err := r.DecodeAndWrite("***", r.PathFor("PRCAP1"))
	de, ok := dErrors.As(err)
	require.True(t, ok)
	assert.Equal(t, dErrors.AppInvalidCertificate, de.AppCode)
}

func TestValidateIsPDFRejectsOtherContent(t *testing.T) {
	r := NewRenderer(t.TempDir())
	path := r.PathFor("PRCAP1")
	require.NoError(t, r.DecodeAndWrite(base64.StdEncoding.EncodeToString([]byte("<html>nope</html>")), path))
	assert.Error(t, r.ValidateIsPDF(path))
}

func TestRemoveOnlyDeletesPDFs(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(dir)

	other := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	require.NoError(t, r.Remove(other))
	assert.FileExists(t, other)

	pdf := r.PathFor("PRCAP1")
	require.NoError(t, os.WriteFile(pdf, []byte(samplePDF), 0o600))
	require.NoError(t, r.Remove(pdf))
	assert.NoFileExists(t, pdf)
	require.NoError(t, r.Remove(pdf), "removing a missing file is not an error")
}
