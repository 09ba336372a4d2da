//go:build linux && amd64
// +build linux,amd64

package native

import (
	"fmt"
	"os"
	"os/exec"

	isatty "github.com/mattn/go-isatty"

	"github.com/go-delve/tdbg/pkg/proc"
)

func attachProcessToTTY(process *exec.Cmd, tty string) (*os.File, error) {
	f, err := os.OpenFile(tty, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if !isatty.IsTerminal(f.Fd()) {
		f.Close()
		return nil, fmt.Errorf("%s is not a terminal", f.Name())
	}
	process.Stdin = f
	process.Stdout = f
	process.Stderr = f
	process.SysProcAttr.Setpgid = false
	process.SysProcAttr.Setsid = true
	process.SysProcAttr.Setctty = true

	return f, nil
}

// resolveExecutable checks that path names an executable file. Bare
// names are searched in PATH.
func resolveExecutable(path string) (string, error) {
	if lp, err := exec.LookPath(path); err == nil {
		path = lp
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.IsDir() || fi.Mode().Perm()&0111 == 0 {
		return "", fmt.Errorf("%s: %w", path, proc.ErrNotExecutable)
	}
	return path, nil
}
