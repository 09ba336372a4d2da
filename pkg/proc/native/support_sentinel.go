// This file is used to detect build on unsupported GOOS/GOARCH combinations.

//go:build !linux || !amd64
// +build !linux !amd64

package native

import (
	"github.com/go-delve/tdbg/pkg/proc"
)

// Launch returns an error, the native backend only supports linux/amd64.
func Launch(cmd []string, wd string, tty string) (*proc.Target, error) {
	path := ""
	if len(cmd) > 0 {
		path = cmd[0]
	}
	return nil, &proc.AttachError{Path: path, Err: proc.ErrUnsupportedBackend}
}
