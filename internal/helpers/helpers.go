// Package helpers holds small, dependency-light utilities shared by the
// site client and download engine: byte accounting, filename sanitization
// and directory bookkeeping. Grounded on the teacher's internal/helpers.
package helpers

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CounterWriter tracks the number of bytes written to the underlying writer.
// Used by ImageDownloadTask to feed the manager's byte-per-second counter.
type CounterWriter struct {
	Total  uint64
	Writer io.Writer
}

// Write implements io.Writer.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	return n, err
}

// BytesToSize converts a byte count into a human-readable string (KB, MB, GB...).
func BytesToSize(bytes uint64) string {
	sizes := []string{"B", "KB", "MB", "GB", "TB"}
	if bytes == 0 {
		return "0B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	return fmt.Sprintf("%.2f%s", float64(bytes)/math.Pow(1024, float64(i)), sizes[i])
}

// invalidFilenameChars are characters illegal (or awkward) on common host
// filesystems. Unlike the teacher's ConvertToSlug, this keeps CJK runes
// intact rather than ASCII-folding them away, since wnacg titles are
// overwhelmingly Chinese and a slug would destroy readability.
const invalidFilenameChars = "\\/:*?\"<>|"

// FilterFilename sanitizes a comic or search-hit title for use as a
// directory/file name component: strips characters illegal on the host
// filesystem and collapses runs of whitespace.
func FilterFilename(title string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range title {
		if strings.ContainsRune(invalidFilenameChars, r) {
			continue
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if lastWasSpace {
				continue
			}
			lastWasSpace = true
			b.WriteRune(' ')
			continue
		}
		lastWasSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// CheckAndMakeDir ensures a directory exists, creating it (and its parents)
// if necessary.
func CheckAndMakeDir(dir string) bool {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.WithError(err).Errorf("error creating directory %s", dir)
		return false
	}
	return true
}
