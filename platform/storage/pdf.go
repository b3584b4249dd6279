package storage

import (
	"bytes"
	"io"
	"regexp"
	"strconv"
)

var (
	pdfPageObject = regexp.MustCompile(`/Type\s*/Page\b`)
	pdfPageCount  = regexp.MustCompile(`/Type\s*/Pages\b[^>]*?/Count\s+(\d+)|/Count\s+(\d+)[^>]*?/Type\s*/Pages\b`)
)

// CountPdfPages estimates the page count of a pdf by scanning its objects.
// The largest /Pages /Count wins. Without one the /Page objects are counted.
// Compressed object streams can hide both, in which case 0 is returned.
func CountPdfPages(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return 0, nil
	}

	best := 0
	for _, m := range pdfPageCount.FindAllSubmatch(data, -1) {
		raw := m[1]
		if len(raw) == 0 {
			raw = m[2]
		}
		if n, err := strconv.Atoi(string(raw)); err == nil && n > best {
			best = n
		}
	}
	if best > 0 {
		return best, nil
	}

	return len(pdfPageObject.FindAll(data, -1)), nil
}
