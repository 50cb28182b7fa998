package kernel

import (
	"io"
	"sync"
)

// File is a reference-counted stream shared by every handle-table entry
// that points at it. The underlying reader and writer are closed when
// the last reference is dropped.
type File struct {
	mu   sync.Mutex
	refs int

	r io.ReadCloser
	w io.WriteCloser
}

// NewFile returns a file holding one reference. Either side may be nil.
func NewFile(r io.ReadCloser, w io.WriteCloser) *File {
	return &File{
		refs: 1,
		r:    r,
		w:    w,
	}
}

func (f *File) Writer() (io.Writer, bool) {
	if f.w == nil {
		return nil, false
	}

	return f.w, true
}

func (f *File) Reader() (io.Reader, bool) {
	if f.r == nil {
		return nil, false
	}

	return f.r, true
}

// Refs returns the current reference count.
func (f *File) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.refs
}

func (f *File) incRef() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refs++
}

// Close drops one reference.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refs--
	if f.refs > 0 {
		return nil
	}

	var err error

	if f.r != nil {
		se := f.r.Close()
		if se != nil {
			err = se
		}
	}

	if f.w != nil {
		se := f.w.Close()
		if se != nil {
			err = se
		}
	}

	return err
}
