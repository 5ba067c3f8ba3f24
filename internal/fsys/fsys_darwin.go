//go:build darwin

package fsys

import (
	"os"

	"golang.org/x/sys/unix"
)

// fsync on darwin does not guarantee the write reached the platter;
// F_FULLFSYNC does.
func fdatasync(f *os.File) error {
	_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
	return err
}
