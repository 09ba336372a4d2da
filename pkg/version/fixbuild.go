//go:build go1.18

package version

import (
	"runtime/debug"
	"strings"
)

func init() {
	fixBuild = buildInfoFixBuild
}

func buildInfoFixBuild(v *Version) {
	// Return if v.Build already set, but not if it is Git ident expand file blob hash
	if !strings.HasPrefix(v.Build, "$Id") {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for i := range info.Settings {
		if info.Settings[i].Key == "vcs.revision" {
			v.Build = info.Settings[i].Value
			break
		}
	}
}
