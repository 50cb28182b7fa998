package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// L is the root logger shared by the kernel, the syscall layer and the CLI.
var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{
		Name:  "tinykern",
		Level: hclog.Info,
	})

	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}

// Named returns a sub-logger of L for one subsystem.
func Named(name string) hclog.Logger {
	return L.Named(name)
}
