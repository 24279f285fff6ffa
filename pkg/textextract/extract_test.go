package textextract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTXT(t *testing.T) {
	text, err := Extract([]byte("  hello world\n"), ".txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestExtractCSV(t *testing.T) {
	data := []byte("name,role\nSunil,CEO\nAsha,Engineer\n")
	text, err := Extract(data, ".csv")
	require.NoError(t, err)
	assert.Contains(t, text, "name, role")
	assert.Contains(t, text, "Sunil, CEO")
	assert.Contains(t, text, "Asha, Engineer")
}

func TestExtractJSONFlattensScalars(t *testing.T) {
	data := []byte(`{"company":{"name":"DotStark","size":40},"tags":["it","web"]}`)
	text, err := Extract(data, ".json")
	require.NoError(t, err)
	assert.Contains(t, text, "company.name: DotStark")
	assert.Contains(t, text, "company.size: 40")
	assert.Contains(t, text, "tags[0]: it")
	assert.Contains(t, text, "tags[1]: web")
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document><w:body><w:p><w:r><w:t>Opening hours</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	text, err := Extract(buf.Bytes(), ".docx")
	require.NoError(t, err)
	assert.Equal(t, "Opening hours", text)
}

func TestExtractUnsupported(t *testing.T) {
	_, err := Extract([]byte("data"), ".exe")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(".pdf"))
	assert.True(t, Supported(".PDF"))
	assert.True(t, Supported(".xlsx"))
	assert.False(t, Supported(".exe"))
	assert.False(t, Supported(""))
}

func TestExtractCaseInsensitiveExtension(t *testing.T) {
	text, err := Extract([]byte("plain"), ".TXT")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}
