package kernel

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

// Fid indexes a process's handle table.
type Fid int32

const NoFile Fid = -1

// reserveFids finds n free entries in p's table. Must be called with
// k.mu held.
func (k *Kernel) reserveFids(p *Process, n int) ([]Fid, error) {
	fids := make([]Fid, 0, n)

	for i, f := range p.files {
		if len(fids) == n {
			break
		}

		if f == nil {
			fids = append(fids, Fid(i))
		}
	}

	if len(fids) < n {
		return nil, errors.Wrapf(ErrFileTableFull, "pid %d", p.pid)
	}

	return fids, nil
}

// Install binds f to the lowest free fid of the caller. The table takes
// over the reference the caller holds on f.
func (k *Kernel) Install(ctx context.Context, f *File) (Fid, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)

	fids, err := k.reserveFids(p, 1)
	if err != nil {
		return NoFile, err
	}

	p.files[fids[0]] = f

	return fids[0], nil
}

// Pipe binds the read and write ends of a new pipe in the caller's table.
func (k *Kernel) Pipe(ctx context.Context) (Fid, Fid, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)

	fids, err := k.reserveFids(p, 2)
	if err != nil {
		return NoFile, NoFile, err
	}

	pread, pwrite := io.Pipe()

	p.files[fids[0]] = NewFile(pread, nil)
	p.files[fids[1]] = NewFile(nil, pwrite)

	return fids[0], fids[1], nil
}

// file returns the file at fid with an extra reference, so it survives a
// concurrent Close while the caller uses it outside the kernel lock.
func (k *Kernel) file(ctx context.Context, fid Fid) (*File, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)

	if fid < 0 || int(fid) >= len(p.files) || p.files[fid] == nil {
		return nil, errors.Wrapf(ErrUnknownFile, "fid %d", fid)
	}

	f := p.files[fid]
	f.incRef()

	return f, nil
}

// File returns the file bound at fid in the caller's table.
func (k *Kernel) File(ctx context.Context, fid Fid) (*File, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)

	if fid < 0 || int(fid) >= len(p.files) {
		return nil, false
	}

	f := p.files[fid]

	return f, f != nil
}

func (k *Kernel) Read(ctx context.Context, fid Fid, buf []byte) (int, error) {
	f, err := k.file(ctx, fid)
	if err != nil {
		return 0, err
	}

	defer f.Close()

	r, ok := f.Reader()
	if !ok {
		return 0, errors.Wrapf(ErrUnknownFile, "fid %d is not readable", fid)
	}

	return r.Read(buf)
}

func (k *Kernel) Write(ctx context.Context, fid Fid, buf []byte) (int, error) {
	f, err := k.file(ctx, fid)
	if err != nil {
		return 0, err
	}

	defer f.Close()

	w, ok := f.Writer()
	if !ok {
		return 0, errors.Wrapf(ErrUnknownFile, "fid %d is not writable", fid)
	}

	return w.Write(buf)
}

func (k *Kernel) Close(ctx context.Context, fid Fid) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)

	if fid < 0 || int(fid) >= len(p.files) || p.files[fid] == nil {
		return errors.Wrapf(ErrUnknownFile, "fid %d", fid)
	}

	f := p.files[fid]
	p.files[fid] = nil

	return f.Close()
}

// Dup2 makes to refer to the same file as from, closing what to held.
// An error closing the old file is logged; the dup still happens.
func (k *Kernel) Dup2(ctx context.Context, from, to Fid) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	p := k.current(ctx)

	if from < 0 || int(from) >= len(p.files) || p.files[from] == nil {
		return errors.Wrapf(ErrUnknownFile, "fid %d", from)
	}

	if to < 0 || int(to) >= len(p.files) {
		return errors.Wrapf(ErrUnknownFile, "fid %d", to)
	}

	if from == to {
		return nil
	}

	if old := p.files[to]; old != nil {
		if err := old.Close(); err != nil {
			k.L.Warn("error closing file replaced by dup2", "pid", p.pid, "fid", to, "error", err)
		}
	}

	p.files[to] = p.files[from]
	p.files[to].incRef()

	return nil
}
