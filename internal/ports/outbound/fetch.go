package outbound

import "context"

// PageFetcher retrieves remote pages on behalf of the content normalizer.
type PageFetcher interface {
	// Fetch performs a GET. Non-2xx responses are returned as FetchFailed errors.
	Fetch(ctx context.Context, url string) (*FetchedPage, error)
}

// FetchedPage is a fetched resource with its declared content type.
type FetchedPage struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}
