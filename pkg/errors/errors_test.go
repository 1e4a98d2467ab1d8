package errors

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"input", NewInputError("bad scheme"), http.StatusBadRequest},
		{"fetch", NewFetchFailedError("https://a.test", 404, nil), http.StatusBadGateway},
		{"empty", NewEmptyExtractionError("https://a.test"), http.StatusUnprocessableEntity},
		{"content type", NewUnsupportedContentTypeError("https://a.test", "text/csv"), http.StatusUnprocessableEntity},
		{"truncated", NewOutputTruncatedError("menu"), http.StatusUnprocessableEntity},
		{"no json", NewNoJSONFoundError("I cannot help"), http.StatusBadGateway},
		{"not recognized", NewNotRecognizedError("recipe"), http.StatusUnprocessableEntity},
		{"internal", NewInternalError(""), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestOutputTruncatedMessageDependsOnTask(t *testing.T) {
	menu := NewOutputTruncatedError("menu")
	recipe := NewOutputTruncatedError("recipe")

	assert.Contains(t, menu.Message, "Maximum dish limit reached")
	assert.Contains(t, recipe.Message, "simpler recipe")
	assert.Equal(t, "menu", menu.Metadata["task"])
}

func TestNoJSONFoundExcerpt(t *testing.T) {
	raw := strings.Repeat("é", 500)

	err := NewNoJSONFoundError(raw)

	excerpt, ok := err.Metadata["excerpt"].(string)
	require.True(t, ok)
	assert.Equal(t, 300, len([]rune(excerpt)))
}

func TestFetchFailedCarriesStatus(t *testing.T) {
	err := NewFetchFailedError("https://bistro.test/menu", 503, nil)

	assert.Equal(t, 503, err.Metadata["status"])
	assert.Equal(t, "https://bistro.test/menu", err.Metadata["url"])
	assert.Contains(t, err.Error(), "status 503")
}

func TestIsAndGetCodeSeeWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("normalize food source: %w", NewEmptyExtractionError("https://a.test"))

	assert.True(t, Is(wrapped, CodeEmptyExtraction))
	assert.False(t, Is(wrapped, CodeFetchFailed))
	assert.Equal(t, CodeEmptyExtraction, GetCode(wrapped))
	assert.Equal(t, CodeInternal, GetCode(fmt.Errorf("plain")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "x"))

	original := NewNotRecognizedError("menu")
	assert.Same(t, original, Wrap(fmt.Errorf("ctx: %w", original), "x"))

	wrapped := Wrap(fmt.Errorf("boom"), "pipeline failed")
	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.EqualError(t, wrapped.Unwrap(), "boom")
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(NewInputError("file too large"), "req-1")

	assert.Equal(t, CodeInputError, resp.Error.Code)
	assert.Equal(t, "file too large", resp.Error.Details)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.NotEmpty(t, resp.Error.Timestamp)
}
