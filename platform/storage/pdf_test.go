package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountPdfPages(t *testing.T) {
	withCount := "%PDF-1.4\n1 0 obj << /Type /Catalog /Pages 2 0 R >> endobj\n" +
		"2 0 obj << /Type /Pages /Kids [3 0 R 4 0 R 5 0 R] /Count 3 >> endobj\n" +
		"3 0 obj << /Type /Page /Parent 2 0 R >> endobj\n"

	pages, err := CountPdfPages(strings.NewReader(withCount))
	require.NoError(t, err)
	assert.Equal(t, 3, pages)

	withoutCount := "%PDF-1.4\n3 0 obj << /Type /Page >> endobj\n4 0 obj << /Type/Page >> endobj\n"
	pages, err = CountPdfPages(strings.NewReader(withoutCount))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	pages, err = CountPdfPages(strings.NewReader("PK\x03\x04 word document"))
	require.NoError(t, err)
	assert.Equal(t, 0, pages)
}
