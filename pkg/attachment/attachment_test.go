package attachment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Smallest byte sequences filetype recognises.
var (
	pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	pdfHeader = []byte("%PDF-1.7\n")
)

func TestCategoryFromMIME(t *testing.T) {
	cases := map[string]Category{
		"image/png":                 Image,
		"video/mp4":                 Video,
		"audio/mpeg":                Audio,
		"application/pdf":           Document,
		"text/plain; charset=utf-8": Document,
		"":                          Document,
	}
	for mt, want := range cases {
		assert.Equal(t, want, CategoryFromMIME(mt), mt)
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("Video")
	require.NoError(t, err)
	assert.Equal(t, Video, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, None, c)

	_, err = ParseCategory("spreadsheet")
	assert.Error(t, err)
}

func TestDetectMIMEPrefersContent(t *testing.T) {
	// a PNG with a misleading extension is still a PNG
	assert.Equal(t, "image/png", DetectMIME("photo.pdf", pngHeader))
	assert.Equal(t, "application/pdf", DetectMIME("report", pdfHeader))
	assert.Equal(t, "text/html", DetectMIME("page.html", []byte("hello")))
	assert.Equal(t, "application/octet-stream", DetectMIME("blob", []byte{1, 2, 3}))
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0644))

	a, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cat.png", a.Name)
	assert.Equal(t, Image, a.Category)
	assert.Equal(t, len(pngHeader), a.Size())

	_, err = Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestSelectReplacesPending(t *testing.T) {
	s := NewSelector()
	first := FromBytes("a.png", pngHeader)
	second := FromBytes("b.pdf", pdfHeader)

	require.NoError(t, s.Select(first, None))
	require.NoError(t, s.Select(second, None))

	p := s.Pending()
	require.NotNil(t, p)
	assert.Equal(t, "b.pdf", p.Name)
	assert.Equal(t, Document, p.Category)
}

func TestSelectExplicitCategoryWins(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Select(FromBytes("clip.bin", []byte{9, 9, 9}), Video))
	assert.Equal(t, Video, s.Pending().Category)
}

func TestRequestConstrainsPicker(t *testing.T) {
	s := NewSelector()

	s.Request(Video)
	for _, mt := range AllowedMIMETypes(Video) {
		assert.True(t, s.Accepts(mt), mt)
	}
	assert.False(t, s.Accepts("image/png"))
	err := s.Select(FromBytes("a.png", pngHeader), None)
	assert.ErrorIs(t, err, ErrNotAccepted)
	assert.Nil(t, s.Pending())

	s.Request(Document)
	assert.True(t, s.Accepts("application/pdf"))
	assert.False(t, s.Accepts("video/mp4"))
	require.NoError(t, s.Select(FromBytes("r.pdf", pdfHeader), None))

	s.Request(None)
	assert.True(t, s.Accepts("application/x-anything"))
}

func TestAudioPickerAcceptsSniffedAudio(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 16)...)
	flac := append([]byte("fLaC\x00\x00\x00\x22"), make([]byte, 16)...)
	m4a := append([]byte("\x00\x00\x00\x20ftypM4A \x00\x00\x00\x00"), make([]byte, 16)...)

	cases := []struct {
		name string
		data []byte
		mime string
	}{
		{"song.wav", wav, "audio/wav"},
		{"song.flac", flac, "audio/flac"},
		{"song.m4a", m4a, "audio/mp4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := FromBytes(tc.name, tc.data)
			assert.Equal(t, tc.mime, a.MIMEType)
			assert.Equal(t, Audio, a.Category)

			s := NewSelector()
			s.Request(Audio)
			require.NoError(t, s.Select(a, Audio))
			require.NotNil(t, s.Pending())
			assert.Equal(t, tc.name, s.Pending().Name)
		})
	}
}

func TestAllowsResolvesAliases(t *testing.T) {
	assert.True(t, Audio.Allows("audio/x-wav"))
	assert.True(t, Audio.Allows("audio/x-m4a"))
	assert.True(t, Image.Allows("image/jpg"))
	assert.False(t, Audio.Allows("video/mp4"))
}

func TestTakeClears(t *testing.T) {
	s := NewSelector()
	require.NoError(t, s.Select(FromBytes("a.png", pngHeader), None))

	a := s.Take()
	require.NotNil(t, a)
	assert.Nil(t, s.Pending())
	assert.Nil(t, s.Take())

	require.NoError(t, s.Select(FromBytes("a.png", pngHeader), None))
	s.Clear()
	assert.Nil(t, s.Pending())
}

func TestRenderHTMLPerCategory(t *testing.T) {
	cases := []struct {
		cat  Category
		want string
	}{
		{Image, "<img"},
		{Video, "<video"},
		{Audio, "<audio"},
		{Document, "download="},
	}
	for _, tc := range cases {
		a := &Attachment{Name: "f<x>", MIMEType: "x/y", Category: tc.cat}
		out := string(RenderHTML(a, "/chat/attachments/0"))
		assert.Contains(t, out, tc.want, tc.cat.String())
		assert.Contains(t, out, "/chat/attachments/0")
		assert.False(t, strings.Contains(out, "f<x>"), "name must be escaped")
	}
	assert.Empty(t, RenderHTML(nil, ""))
}

func TestRenderText(t *testing.T) {
	a := &Attachment{Name: "song.mp3", MIMEType: "audio/mpeg", Category: Audio, Data: make([]byte, 2048)}
	assert.Equal(t, "[audio] song.mp3 (audio/mpeg, 2.0 kB)", RenderText(a))
}
