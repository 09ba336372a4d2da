package main

import (
	"os"

	"github.com/go-delve/tdbg/cmd/tdbg/cmds"
	"github.com/go-delve/tdbg/pkg/logflags"
	"github.com/go-delve/tdbg/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.TdbgVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		logflags.DebuggerLogger().Debugf("command line: %v", err)
		os.Exit(1)
	}
}
