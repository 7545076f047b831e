// Package falloc preallocates disk space for a pickle file before RefFS
// writes it (spec §4.7), so that a large snapshot doesn't fragment across
// a filesystem that's low on contiguous free space. It is a thin wrapper
// around github.com/detailyang/go-fallocate, which already knows how to
// fall back between fallocate(2), posix_fallocate, and a plain
// truncate+write on platforms without either.
package falloc

import (
	"os"

	"github.com/detailyang/go-fallocate"
)

// Preallocate reserves size bytes in f starting at offset 0.
// PickleToFile passes the whole file's length (integrity header plus
// encoded body), known up front because the codec builds the whole body
// in memory before writing it out (pickle.go's encodeBody).
func Preallocate(f *os.File, size int64) error {
	if size <= 0 {
		return nil
	}
	return fallocate.Fallocate(f, 0, size)
}
