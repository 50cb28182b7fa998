package kernel

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"reflect"

	"github.com/pkg/errors"
)

// ProcInfoMaxArgs bounds the argument bytes carried by one record.
const ProcInfoMaxArgs = 128

// ProcInfo is a snapshot of one occupied slot.
type ProcInfo struct {
	Alive       bool
	Pid         Pid
	PPid        Pid
	ThreadCount int
	MainTask    uint64
	ArgLen      int
	Args        []byte
}

// procInfoRecord is the little-endian layout of a ProcInfo on a stream.
type procInfoRecord struct {
	Alive       uint8
	_           [3]byte
	Pid         int32
	PPid        int32
	ThreadCount uint32
	MainTask    uint64
	ArgLen      uint32
	Args        [ProcInfoMaxArgs]byte
}

// ProcInfoSize is the number of bytes one read of a procinfo stream
// produces.
var ProcInfoSize = binary.Size(procInfoRecord{})

var ErrShortRecord = errors.New("short procinfo record")

func (i ProcInfo) MarshalBinary() ([]byte, error) {
	rec := procInfoRecord{
		Pid:         int32(i.Pid),
		PPid:        int32(i.PPid),
		ThreadCount: uint32(i.ThreadCount),
		MainTask:    i.MainTask,
		ArgLen:      uint32(i.ArgLen),
	}

	if i.Alive {
		rec.Alive = 1
	}

	copy(rec.Args[:], i.Args)

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &rec); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// DecodeProcInfo parses one record. Args holds at most ProcInfoMaxArgs
// bytes even when ArgLen is larger.
func DecodeProcInfo(b []byte) (ProcInfo, error) {
	if len(b) < ProcInfoSize {
		return ProcInfo{}, errors.Wrapf(ErrShortRecord, "%d bytes", len(b))
	}

	var rec procInfoRecord

	err := binary.Read(bytes.NewReader(b[:ProcInfoSize]), binary.LittleEndian, &rec)
	if err != nil {
		return ProcInfo{}, err
	}

	n := int(rec.ArgLen)
	if n > ProcInfoMaxArgs {
		n = ProcInfoMaxArgs
	}

	info := ProcInfo{
		Alive:       rec.Alive != 0,
		Pid:         Pid(rec.Pid),
		PPid:        Pid(rec.PPid),
		ThreadCount: int(rec.ThreadCount),
		MainTask:    rec.MainTask,
		ArgLen:      int(rec.ArgLen),
		Args:        append([]byte(nil), rec.Args[:n]...),
	}

	return info, nil
}

func taskRef(task TaskFunc) uint64 {
	if task == nil {
		return 0
	}

	return uint64(reflect.ValueOf(task).Pointer())
}

// snapshot must be called with k.mu held.
func (k *Kernel) snapshot(p *Process) ProcInfo {
	info := ProcInfo{
		Alive:       p.state == Alive,
		Pid:         p.pid,
		PPid:        NoProc,
		ThreadCount: p.threadCount,
		MainTask:    taskRef(p.task),
		ArgLen:      len(p.args),
	}

	if parent := k.resolve(p.parent); parent != nil {
		info.PPid = parent.pid
	}

	n := len(p.args)
	if n > ProcInfoMaxArgs {
		n = ProcInfoMaxArgs
	}

	info.Args = append([]byte(nil), p.args[:n]...)

	return info
}

// next advances *cursor past free slots and snapshots the next occupied
// one.
func (k *Kernel) next(cursor *int) (ProcInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for *cursor < len(k.table) {
		p := k.table[*cursor].proc
		*cursor++

		if p != nil {
			return k.snapshot(p), true
		}
	}

	return ProcInfo{}, false
}

// procInfoCursor walks the table forward once. Each record is consistent
// on its own; records are not consistent with each other.
type procInfoCursor struct {
	k      *Kernel
	cursor int
}

func (c *procInfoCursor) Read(buf []byte) (int, error) {
	if len(buf) < ProcInfoSize {
		return 0, io.ErrShortBuffer
	}

	info, ok := c.k.next(&c.cursor)
	if !ok {
		return 0, io.EOF
	}

	data, err := info.MarshalBinary()
	if err != nil {
		return 0, err
	}

	return copy(buf, data), nil
}

func (c *procInfoCursor) Close() error {
	return nil
}

// OpenInfo binds a fresh procinfo stream to a fid of the caller.
func (k *Kernel) OpenInfo(ctx context.Context) (Fid, error) {
	f := NewFile(&procInfoCursor{k: k}, nil)

	fid, err := k.Install(ctx, f)
	if err != nil {
		return NoFile, errors.Wrap(err, "open procinfo")
	}

	return fid, nil
}

// ProcessInfo returns a snapshot of every occupied slot in pid order.
func (k *Kernel) ProcessInfo() []ProcInfo {
	var (
		cursor int
		out    []ProcInfo
	)

	for {
		info, ok := k.next(&cursor)
		if !ok {
			return out
		}

		out = append(out, info)
	}
}
