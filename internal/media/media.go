// Package media classifies uploaded creatives and converts between raw
// bytes, data URIs and archived object references.
package media

import (
	"encoding/base64"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contentmix/internal/model"
)

var (
	// ErrUnsupportedMedia is returned for anything other than video, image or audio.
	ErrUnsupportedMedia = eris.New("media: unsupported media type")
	// ErrInvalidDataURI is returned when a data URI cannot be decoded.
	ErrInvalidDataURI = eris.New("media: invalid data URI")
	// ErrEmpty is returned for a zero-length upload.
	ErrEmpty = eris.New("media: empty file")
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = eris.New("media: file too large")
)

// inlineImageTypes are the image types the inference API accepts as base64 blocks.
var inlineImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// extTypes covers media extensions missing from some system MIME tables.
var extTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func typeByExtension(ext string) string {
	ext = strings.ToLower(ext)
	if t, ok := extTypes[ext]; ok {
		return t
	}
	return baseType(mime.TypeByExtension(ext))
}

// Classify maps a MIME type to the asset format.
func Classify(mimeType string) (model.MediaKind, error) {
	base := baseType(mimeType)
	switch {
	case strings.HasPrefix(base, "video/"):
		return model.MediaVideo, nil
	case strings.HasPrefix(base, "image/"):
		return model.MediaImage, nil
	case strings.HasPrefix(base, "audio/"):
		return model.MediaAudio, nil
	}
	return "", eris.Wrapf(ErrUnsupportedMedia, "%q", mimeType)
}

// Inlineable reports whether a file of this type can be attached to the
// inference request directly instead of by reference.
func Inlineable(mimeType string) bool {
	return inlineImageTypes[baseType(mimeType)]
}

// DetectType returns the MIME type of a file, preferring the declared type,
// then the file extension, then content sniffing.
func DetectType(declared, filename string, data []byte) string {
	if b := baseType(declared); b != "" && b != "application/octet-stream" {
		return b
	}
	if ext := filepath.Ext(filename); ext != "" {
		if t := typeByExtension(ext); t != "" {
			return t
		}
	}
	if len(data) > 0 {
		return baseType(http.DetectContentType(data))
	}
	return "application/octet-stream"
}

func baseType(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(mimeType)
	}
	return mt
}

// File is a decoded creative.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Kind classifies the file.
func (f *File) Kind() (model.MediaKind, error) {
	if len(f.Data) == 0 {
		return "", ErrEmpty
	}
	return Classify(f.MIMEType)
}

// CheckSize rejects files above max bytes. A non-positive max disables the check.
func (f *File) CheckSize(max int64) error {
	if max > 0 && int64(len(f.Data)) > max {
		return eris.Wrapf(ErrTooLarge, "%d bytes exceeds %d", len(f.Data), max)
	}
	return nil
}

// DataURI encodes the file as data:<mime>;base64,<data>.
func (f *File) DataURI() string {
	return "data:" + f.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// IsDataURI reports whether s looks like a data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURI decodes a base64 data URI.
func ParseDataURI(s string) (*File, error) {
	if !IsDataURI(s) {
		return nil, eris.Wrap(ErrInvalidDataURI, "missing data: scheme")
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, eris.Wrap(ErrInvalidDataURI, "missing payload separator")
	}
	mt, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, eris.Wrap(ErrInvalidDataURI, "only base64 payloads are supported")
	}
	if mt == "" {
		mt = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, eris.Wrap(ErrInvalidDataURI, err.Error())
	}
	return &File{MIMEType: baseType(mt), Data: data}, nil
}

// ReferenceType returns the MIME type a media reference carries: the
// data URI header, or the type implied by the reference's extension.
func ReferenceType(ref string) string {
	if IsDataURI(ref) {
		header, _, _ := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
		return baseType(strings.TrimSuffix(header, ";base64"))
	}
	ext := filepath.Ext(ref)
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if ext == "" {
		return ""
	}
	return typeByExtension(ext)
}
