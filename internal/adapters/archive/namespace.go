// Package archive persists raw bursts as CSV files named from a bounded,
// zero-padded integer namespace (0000.csv … 9999.csv by default).
package archive

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ghalamif/accelsentry/internal/domain"
)

const (
	DefaultDigits    = 4
	DefaultExtension = ".csv"
	maxDigits        = 9
)

// Namespace describes the set of candidate filenames in one directory.
type Namespace struct {
	Dir    string
	Digits int
	Ext    string
}

func (n Namespace) withDefaults() Namespace {
	if n.Digits <= 0 {
		n.Digits = DefaultDigits
	}
	if n.Ext == "" {
		n.Ext = DefaultExtension
	}
	return n
}

// Size returns the number of slots, 10^Digits.
func (n Namespace) Size() int {
	n = n.withDefaults()
	size := 1
	for i := 0; i < n.Digits; i++ {
		size *= 10
	}
	return size
}

// Name renders slot as a zero-padded filename.
func (n Namespace) Name(slot int) string {
	n = n.withDefaults()
	return fmt.Sprintf("%0*d%s", n.Digits, slot, n.Ext)
}

// Path joins Dir and the filename for slot.
func (n Namespace) Path(slot int) string {
	return filepath.Join(n.Dir, n.Name(slot))
}

// Archive writes b to the first free slot at or after start and returns that
// slot. On any failure it returns start unchanged together with an error
// wrapping domain.ErrArchive; the burst is not retried.
//
// Candidates are claimed with O_EXCL, so a file that appeared after a previous
// call (or from another process) is skipped rather than overwritten.
func (n Namespace) Archive(ctx context.Context, b *domain.Burst, start int) (int, error) {
	n = n.withDefaults()
	if n.Digits > maxDigits {
		return start, fmt.Errorf("%w: %d digits exceeds limit of %d", domain.ErrArchive, n.Digits, maxDigits)
	}
	if err := b.Validate(); err != nil {
		return start, fmt.Errorf("%w: %v", domain.ErrArchive, err)
	}
	if start < 0 {
		start = 0
	}

	size := n.Size()
	for slot := start; slot < size; slot++ {
		if err := ctx.Err(); err != nil {
			return start, fmt.Errorf("%w: scan interrupted at slot %d: %v", domain.ErrArchive, slot, err)
		}

		path := n.Path(slot)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return start, fmt.Errorf("%w: create %s: %v", domain.ErrArchive, path, err)
		}

		if err := writeRecords(f, b); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return start, fmt.Errorf("%w: write %s: %v", domain.ErrArchive, path, err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return start, fmt.Errorf("%w: close %s: %v", domain.ErrArchive, path, err)
		}
		return slot, nil
	}
	return start, fmt.Errorf("%w: no free slot in %s from %d to %d", domain.ErrNamespaceExhausted, n.Dir, start, size-1)
}

// writeRecords emits one "x, y, z" line per tick.
func writeRecords(f *os.File, b *domain.Burst) error {
	w := bufio.NewWriter(f)
	line := make([]byte, 0, 64)
	for i := range b.X {
		line = line[:0]
		line = strconv.AppendFloat(line, b.X[i], 'g', -1, 64)
		line = append(line, ", "...)
		line = strconv.AppendFloat(line, b.Y[i], 'g', -1, 64)
		line = append(line, ", "...)
		line = strconv.AppendFloat(line, b.Z[i], 'g', -1, 64)
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return w.Flush()
}
