package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelEncodeParse(t *testing.T) {
	label := Label{FileName: "семейное фото.jpg", FileSize: 40000, Sender: "alice"}
	encoded, err := label.Encode()
	require.NoError(t, err)

	parsed, err := ParseLabel(encoded)
	require.NoError(t, err)
	assert.Equal(t, label, parsed)
}

func TestParseLabelRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":      "report.pdf",
		"empty name":    `{"fileName":"","fileSize":10,"sender":"alice"}`,
		"negative size": `{"fileName":"a.bin","fileSize":-1,"sender":"alice"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLabel(raw)
			assert.Error(t, err)
		})
	}
}

func TestFileSourceReadsSlices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.bin")
	data := patternBytes(100)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, int64(100), src.Size())

	head, err := src.ReadSlice(0, 10)
	require.NoError(t, err)
	assert.Equal(t, data[:10], head)

	tail, err := src.ReadSlice(90, 64)
	require.NoError(t, err)
	assert.Equal(t, data[90:], tail, "short read at the end is not an error")
}

func TestNewFileSourceRejectsDirectory(t *testing.T) {
	_, err := NewFileSource(t.TempDir())
	assert.Error(t, err)
}
