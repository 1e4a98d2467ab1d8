package pairing

import "errors"

// Domain errors for pairing requests

var (
	// Source errors
	ErrNoSource            = errors.New("a file or a URL is required")
	ErrAmbiguousSource     = errors.New("provide either files or a URL, not both")
	ErrUnsupportedScheme   = errors.New("URL must use http or https")
	ErrInvalidURL          = errors.New("URL is not valid")
	ErrUnsupportedFileType = errors.New("file type must be JPEG, PNG, WebP, GIF or PDF")
	ErrFileTooLarge        = errors.New("file exceeds the upload size limit")
	ErrEmptyFile           = errors.New("file is empty")

	// Option errors
	ErrNegativePrice     = errors.New("prices cannot be negative")
	ErrNonFinitePrice    = errors.New("prices must be finite numbers")
	ErrInvalidPriceRange = errors.New("minimum price must not exceed maximum price")
	ErrInvalidCurrency   = errors.New("currency must be a three-letter ISO 4217 code")
	ErrUnknownCourse     = errors.New("course must be starter, main or dessert")
)
