package attachment

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
)

const octetStream = "application/octet-stream"

// sniffLen is how much of a file filetype needs to recognise its magic numbers.
const sniffLen = 262

// Attachment is a file staged for, or already part of, a chat message.
type Attachment struct {
	Name     string
	MIMEType string
	Category Category
	Data     []byte
}

func (a *Attachment) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// Load reads a file from disk. The category is derived from the detected MIME type.
func Load(path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attachment: read %s: %w", path, err)
	}
	return FromBytes(filepath.Base(path), data), nil
}

// FromBytes wraps an in-memory blob, detecting its MIME type.
func FromBytes(name string, data []byte) *Attachment {
	mt := DetectMIME(name, data)
	return &Attachment{
		Name:     name,
		MIMEType: mt,
		Category: CategoryFromMIME(mt),
		Data:     data,
	}
}

// DetectMIME sniffs the content first, then falls back to the file extension.
func DetectMIME(name string, data []byte) string {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return baseMIME(kind.MIME.Value)
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return baseMIME(byExt)
	}
	return octetStream
}
