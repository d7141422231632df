package attachment

import (
	"fmt"
	"strings"
)

// Category is resolved once when a file is selected and drives how it is previewed.
type Category int

const (
	None Category = iota
	Image
	Video
	Audio
	Document
)

var categoryNames = map[Category]string{
	None:     "",
	Image:    "image",
	Video:    "video",
	Audio:    "audio",
	Document: "document",
}

func (c Category) String() string {
	return categoryNames[c]
}

// ParseCategory accepts the lowercase category names; an empty string is None.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown attachment category %q", s)
}

var allowed = map[Category][]string{
	Image: {
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"image/bmp",
		"image/svg+xml",
	},
	Video: {
		"video/mp4",
		"video/webm",
		"video/ogg",
		"video/quicktime",
		"video/x-msvideo",
		"video/x-matroska",
	},
	Audio: {
		"audio/mpeg",
		"audio/wav",
		"audio/ogg",
		"audio/webm",
		"audio/aac",
		"audio/flac",
		"audio/mp4",
	},
	Document: {
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"text/plain",
		"text/csv",
	},
}

// AllowedMIMETypes returns the picker allow-list for c. None has no list.
func AllowedMIMETypes(c Category) []string {
	return append([]string(nil), allowed[c]...)
}

// Allows reports whether mime is on c's allow-list. Parameters such as
// "; charset=utf-8" are ignored.
func (c Category) Allows(mime string) bool {
	mime = baseMIME(mime)
	for _, m := range allowed[c] {
		if m == mime {
			return true
		}
	}
	return false
}

// Accept renders the allow-list in the form an HTML file input expects.
func (c Category) Accept() string {
	return strings.Join(allowed[c], ",")
}

// CategoryFromMIME classifies by MIME prefix; anything that is not image, video or
// audio is treated as a document.
func CategoryFromMIME(mime string) Category {
	mime = baseMIME(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return Image
	case strings.HasPrefix(mime, "video/"):
		return Video
	case strings.HasPrefix(mime, "audio/"):
		return Audio
	default:
		return Document
	}
}

// mimeAliases maps the names sniffers and older browsers report to the ones on the
// allow-lists.
var mimeAliases = map[string]string{
	"audio/x-wav":       "audio/wav",
	"audio/wave":        "audio/wav",
	"audio/vnd.wave":    "audio/wav",
	"audio/x-flac":      "audio/flac",
	"audio/m4a":         "audio/mp4",
	"audio/x-m4a":       "audio/mp4",
	"audio/mp3":         "audio/mpeg",
	"audio/x-mpeg":      "audio/mpeg",
	"audio/x-aac":       "audio/aac",
	"image/jpg":         "image/jpeg",
	"image/x-ms-bmp":    "image/bmp",
	"video/x-m4v":       "video/mp4",
	"video/x-mkv":       "video/x-matroska",
	"video/avi":         "video/x-msvideo",
	"application/x-pdf": "application/pdf",
}

// baseMIME strips parameters, lowercases and resolves aliases.
func baseMIME(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if canonical, ok := mimeAliases[mime]; ok {
		return canonical
	}
	return mime
}
