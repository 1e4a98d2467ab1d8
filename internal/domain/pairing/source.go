package pairing

import (
	"fmt"
	"net/url"
	"strings"
)

// allowedFileTypes lists the MIME types accepted for uploads.
var allowedFileTypes = map[string]ContentKind{
	"image/jpeg": ContentImage,
	"image/png":  ContentImage,
	"image/webp": ContentImage,
	"image/gif":  ContentImage,
	MimePDF:      ContentDocument,
}

// File is an uploaded file as received from a client.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Kind returns the content kind for the file's MIME type, if supported.
func (f File) Kind() (ContentKind, bool) {
	kind, ok := allowedFileTypes[NormalizeMime(f.MimeType)]
	return kind, ok
}

// Validate checks type and size. maxBytes <= 0 disables the size check.
func (f File) Validate(maxBytes int64) error {
	if _, ok := f.Kind(); !ok {
		return fmt.Errorf("%w: %s (%s)", ErrUnsupportedFileType, f.Name, f.MimeType)
	}
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, f.Name)
	}
	if maxBytes > 0 && int64(len(f.Data)) > maxBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrFileTooLarge, f.Name, len(f.Data), maxBytes)
	}
	return nil
}

// Source is a food, wine or recipe source: either a set of files or a URL.
type Source struct {
	Files []File
	URL   string
}

// URLSource returns a source for a remote page.
func URLSource(raw string) Source {
	return Source{URL: strings.TrimSpace(raw)}
}

// FileSource returns a source for uploaded files.
func FileSource(files ...File) Source {
	return Source{Files: files}
}

// IsZero reports whether nothing was supplied.
func (s Source) IsZero() bool {
	return len(s.Files) == 0 && s.URL == ""
}

// IsURL reports whether the source is a remote page.
func (s Source) IsURL() bool {
	return s.URL != "" && len(s.Files) == 0
}

// Validate checks the source before any network call is made.
func (s Source) Validate(maxFileBytes int64) error {
	if s.IsZero() {
		return ErrNoSource
	}
	if s.URL != "" && len(s.Files) > 0 {
		return ErrAmbiguousSource
	}
	if s.URL != "" {
		return ValidateURL(s.URL)
	}
	for _, f := range s.Files {
		if err := f.Validate(maxFileBytes); err != nil {
			return err
		}
	}
	return nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// NormalizeMime strips parameters and lowercases a MIME type.
func NormalizeMime(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}
