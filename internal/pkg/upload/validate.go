package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPhotos is the per-listing cap for each photo kind.
const MaxPhotos = 10

var (
	ErrUnsupportedType = errors.New("only PNG, JPG, JPEG, GIF and WEBP photos are supported")
	ErrScriptContent   = errors.New("invalid file type: markup content is not allowed")
	ErrTooManyPhotos   = fmt.Errorf("at most %d photos per upload", MaxPhotos)
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedExtension reports whether the file name carries a supported photo extension.
func AllowedExtension(filename string) bool {
	return allowedExt[strings.ToLower(filepath.Ext(filename))]
}

// ValidateImageBySniff checks the extension and the first bytes of the
// file. Returns the detected mime type.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	if !AllowedExtension(filename) {
		return "", ErrUnsupportedType
	}

	detected := http.DetectContentType(head)
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") ||
		strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") {
		return "", ErrScriptContent
	}
	if allowedMime[detected] {
		return detected, nil
	}
	return "", ErrUnsupportedType
}

// ValidateFileHeader opens an uploaded part and sniffs its first 512 bytes.
func ValidateFileHeader(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return ValidateImageBySniff(fh.Filename, head[:n])
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SecureFilename reduces a client file name to a safe base name.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "photo"
	}
	return name
}

// StoredFilename builds the on-disk name {YYYYmmdd_HHMMSS}_{uuid8}_{name}.
func StoredFilename(original string, now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", now.Format("20060102_150405"), id, SecureFilename(original))
}
