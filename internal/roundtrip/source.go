package roundtrip

import (
	"iter"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/chunkbench/pkg/bencherrors"
)

// Entry is one directory entry offered to the runner.
type Entry struct {
	Name string
	Path string
}

// Lister enumerates a directory.
type Lister struct {
	dir string
}

// NewLister checks that dir exists and is a directory.
func NewLister(dir string) (*Lister, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeSetup, "input directory").
			WithDetail("path", dir)
	}
	if !info.IsDir() {
		return nil, bencherrors.New(bencherrors.ErrorTypeSetup, "input path is not a directory").
			WithDetail("path", dir)
	}
	return &Lister{dir: dir}, nil
}

// Entries reads the directory and returns its entries in lexical name
// order. The names are read up front; each entry is stat'ed only when the
// caller asks, so the sequence reflects files removed mid-run.
func (l *Lister) Entries() (iter.Seq[Entry], error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, bencherrors.Wrap(err, bencherrors.ErrorTypeSetup, "read input directory").
			WithDetail("path", l.dir)
	}
	return func(yield func(Entry) bool) {
		for _, de := range dirEntries {
			if !yield(Entry{Name: de.Name(), Path: filepath.Join(l.dir, de.Name())}) {
				return
			}
		}
	}, nil
}

// isLedger reports whether e is the run's own ledger.
func isLedger(e Entry, ledgerName string) bool {
	return e.Name == ledgerName
}

// isRegular reports whether e is, or links to, a regular file.
func isRegular(e Entry) bool {
	info, err := os.Stat(e.Path)
	return err == nil && info.Mode().IsRegular()
}
