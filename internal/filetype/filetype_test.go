package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal valid PNG: signature plus empty IHDR-less body is enough for
// signature-based sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

func TestIsDrawableMIMEType(t *testing.T) {
	cases := []struct {
		mime     string
		drawable bool
	}{
		{"image/jpeg", true},
		{"image/png", true},
		{"video/mp4", true},
		{"video/x-msvideo", true},
		{"application/x-shockwave-flash", true},
		{"image/svg+xml", false},
		{"application/pdf", false},
		{"text/plain", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.drawable, IsDrawableMIMEType(tc.mime), tc.mime)
	}
}

func TestHasDrawableExtension(t *testing.T) {
	assert.True(t, HasDrawableExtension("photo.JPG"))
	assert.True(t, HasDrawableExtension("clip.mkv"))
	assert.True(t, HasDrawableExtension("archive/pictures/img.heic"))
	assert.False(t, HasDrawableExtension("document.pdf"))
	assert.False(t, HasDrawableExtension("noextension"))
}

func TestDetectSniffsContent(t *testing.T) {
	det, err := NewDetector()
	require.NoError(t, err)

	// Extension lies; content wins.
	path := filepath.Join(t.TempDir(), "image.txt")
	require.NoError(t, os.WriteFile(path, pngHeader, 0644))

	mime, err := det.Detect(path)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
}

func TestDetectMissingFileFails(t *testing.T) {
	det, err := NewDetector()
	require.NoError(t, err)

	_, err = det.Detect(filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
}
