package pdf

import (
	"bytes"
	"os"

	pdfreader "github.com/ledongthuc/pdf"
)

// Limits are the size floors a finished PDF must clear. Truncated downloads
// produce structurally valid but suspiciously small files, so page count
// alone is not enough.
type Limits struct {
	MinSizeBytes       int64
	MinPageBytes       int64
	MinTotalForMulti   int64
	MultiPageThreshold int
}

// Report is the outcome of validating one PDF.
type Report struct {
	OK    bool
	Pages int
	Size  int64
}

// Validate checks that a PDF exists, parses, has pages, clears the size
// floors, and did not lose more than half the expected pages.
func Validate(path string, expectedPages int, lim Limits) Report {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}
	}
	size := info.Size()

	pages := PageCount(path)
	if pages <= 0 {
		return Report{Pages: pages, Size: size}
	}

	minTotal := lim.MinSizeBytes
	if perPage := int64(pages) * lim.MinPageBytes; perPage > minTotal {
		minTotal = perPage
	}
	if pages > lim.MultiPageThreshold && lim.MinTotalForMulti > minTotal {
		minTotal = lim.MinTotalForMulti
	}
	if size < minTotal {
		return Report{Pages: pages, Size: size}
	}

	if expectedPages > 0 {
		minPages := expectedPages / 2
		if minPages < 1 {
			minPages = 1
		}
		if pages < minPages {
			return Report{Pages: pages, Size: size}
		}
	}

	return Report{OK: true, Pages: pages, Size: size}
}

// PageCount parses the PDF for its page total, falling back to counting raw
// page objects when the file is damaged enough to defeat the parser.
func PageCount(path string) int {
	f, r, err := pdfreader.Open(path)
	if err == nil {
		n := safeNumPage(r)
		f.Close()
		if n > 0 {
			return n
		}
	} else if f != nil {
		f.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	return bytes.Count(data, []byte("/Type /Page"))
}

// safeNumPage guards against panics in the reader on malformed xref tables.
func safeNumPage(r *pdfreader.Reader) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()

	return r.NumPage()
}
