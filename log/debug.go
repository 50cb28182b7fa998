package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

func EnableDebug() {
	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
		return
	}

	L.SetLevel(hclog.Debug)
}

// SetLevel parses a level name such as "trace" or "warn". Unknown names
// leave the current level alone.
func SetLevel(name string) {
	if name == "" {
		return
	}

	if lvl := hclog.LevelFromString(name); lvl != hclog.NoLevel {
		L.SetLevel(lvl)
	}
}
