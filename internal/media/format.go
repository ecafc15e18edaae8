package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is a supported audio container, named by its file extension.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatM4A Format = "m4a"
	FormatAAC Format = "aac"
	FormatOGG Format = "ogg"
)

// DefaultContentType is served for formats missing from the table.
const DefaultContentType = "audio/mpeg"

// ErrInvalidFormat is returned for uploads whose type or extension is not accepted.
var ErrInvalidFormat = errors.New("invalid media format")

// Formats lists every supported audio format.
var Formats = []Format{FormatMP3, FormatWAV, FormatM4A, FormatAAC, FormatOGG}

var contentTypes = map[Format]string{
	FormatMP3: "audio/mpeg",
	FormatM4A: "audio/mp4",
	FormatWAV: "audio/wav",
	FormatAAC: "audio/aac",
	FormatOGG: "audio/ogg",
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if ct, ok := contentTypes[f]; ok {
		return ct
	}
	return DefaultContentType
}

// Supported reports whether f is one of Formats.
func (f Format) Supported() bool {
	_, ok := contentTypes[f]
	return ok
}

// ParseFormat validates a format name such as "mp3" or ".MP3".
func ParseFormat(value string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")))
	if !f.Supported() {
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidFormat, value)
	}
	return f, nil
}

// Extension returns the lowercase extension of filename without the dot.
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// ValidateAudio checks the declared MIME type and the filename extension of an
// audio upload against allowed and returns the detected format.
func ValidateAudio(filename, contentType string, allowed []Format) (Format, error) {
	if !isMediaType(contentType, "audio") {
		return "", fmt.Errorf("%w: %q is not an audio type", ErrInvalidFormat, contentType)
	}
	f, err := ParseFormat(Extension(filename))
	if err != nil {
		return "", err
	}
	if len(allowed) > 0 && !containsFormat(allowed, f) {
		return "", fmt.Errorf("%w: format %q is not allowed", ErrInvalidFormat, f)
	}
	return f, nil
}

var imageTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ImageContentType returns the MIME type served for a stored cover image.
func ImageContentType(filename string) string {
	if ct, ok := imageTypes[Extension(filename)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// ValidateImage checks a cover image upload and returns its extension.
func ValidateImage(filename, contentType string) (string, error) {
	if !isMediaType(contentType, "image") {
		return "", fmt.Errorf("%w: %q is not an image type", ErrInvalidFormat, contentType)
	}
	ext := Extension(filename)
	if _, ok := imageTypes[ext]; !ok {
		return "", fmt.Errorf("%w: unsupported image extension %q", ErrInvalidFormat, ext)
	}
	return ext, nil
}

func isMediaType(contentType, top string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, top+"/") && len(ct) > len(top)+1
}

func containsFormat(formats []Format, f Format) bool {
	for _, candidate := range formats {
		if candidate == f {
			return true
		}
	}
	return false
}
