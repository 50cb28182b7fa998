package kernel

import (
	"github.com/pkg/errors"
)

// Check verifies the table invariants: the free chain holds exactly the
// empty slots, processCount matches the occupied slots, each process is
// linked in the children or exited list of its parent according to its
// state, and every handle holds a reference.
func (k *Kernel) Check() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.check()
}

func (k *Kernel) check() error {
	onFree := make([]bool, len(k.table))

	for pid := k.freeHead; pid != NoProc; pid = k.table[pid].nextFree {
		if pid < 0 || int(pid) >= len(k.table) {
			return errors.Errorf("free chain points outside the table: %d", pid)
		}

		if onFree[pid] {
			return errors.Errorf("free chain loops at pid %d", pid)
		}

		if k.table[pid].proc != nil {
			return errors.Errorf("occupied slot %d on the free chain", pid)
		}

		onFree[pid] = true
	}

	var (
		occupied int
		linked   = make(map[Pid]int)
	)

	for i := range k.table {
		p := k.table[i].proc
		if p == nil {
			if !onFree[i] {
				return errors.Errorf("free slot %d missing from the free chain", i)
			}
			continue
		}

		occupied++

		if p.pid != Pid(i) {
			return errors.Errorf("slot %d holds pid %d", i, p.pid)
		}

		if p.state == Free {
			return errors.Errorf("occupied slot %d is marked free", i)
		}

		if p.parent.pid != NoProc {
			if k.resolve(p.parent) == nil {
				return errors.Errorf("pid %d has a dangling parent %d", p.pid, p.parent.pid)
			}

			linked[p.parent.pid]++
		}

		if err := k.checkList(p, Alive); err != nil {
			return err
		}

		if err := k.checkList(p, Zombie); err != nil {
			return err
		}

		for fid, f := range p.files {
			if f != nil && f.Refs() < 1 {
				return errors.Errorf("pid %d fid %d holds a released file", p.pid, fid)
			}
		}

		if p.state == Alive && p.threads.Len() != p.threadCount {
			return errors.Errorf("pid %d thread list has %d entries, count is %d", p.pid, p.threads.Len(), p.threadCount)
		}
	}

	if occupied != k.processCount {
		return errors.Errorf("process count %d, occupied slots %d", k.processCount, occupied)
	}

	for i := range k.table {
		p := k.table[i].proc
		if p == nil {
			continue
		}

		if n := p.children.Len() + p.exited.Len(); n != linked[p.pid] {
			return errors.Errorf("pid %d links %d children, %d processes name it as parent", p.pid, n, linked[p.pid])
		}
	}

	return nil
}

func (k *Kernel) checkList(p *Process, state ProcessState) error {
	l := &p.children
	if state == Zombie {
		l = &p.exited
	}

	for it := l.Front(); it != nil; it = it.Next() {
		c := it.(*Process)

		if k.lookup(c.pid) != c {
			return errors.Errorf("pid %d lists released child %d", p.pid, c.pid)
		}

		if c.state != state {
			return errors.Errorf("pid %d lists child %d as %s, it is %s", p.pid, c.pid, state, c.state)
		}

		if c.parent != p.ref() {
			return errors.Errorf("pid %d lists child %d whose parent is %d", p.pid, c.pid, c.parent.pid)
		}
	}

	return nil
}
