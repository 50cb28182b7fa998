package kernel

import (
	"fmt"
	"runtime"

	lru "github.com/hashicorp/golang-lru"
)

type taskNameCache struct {
	cache *lru.ARCCache
}

func newTaskNameCache(size int) *taskNameCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}

	return &taskNameCache{cache: cache}
}

func (c *taskNameCache) lookup(ref uint64) string {
	if val, ok := c.cache.Get(ref); ok {
		return val.(string)
	}

	name := fmt.Sprintf("0x%x", ref)
	if fn := runtime.FuncForPC(uintptr(ref)); fn != nil {
		name = fn.Name()
	}

	c.cache.Add(ref, name)

	return name
}

var taskNames = newTaskNameCache(256)

// TaskName resolves the MainTask reference of a ProcInfo to the name of
// the function, or "-" for a process without a task.
func TaskName(ref uint64) string {
	if ref == 0 {
		return "-"
	}

	return taskNames.lookup(ref)
}
