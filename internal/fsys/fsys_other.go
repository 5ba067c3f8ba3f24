//go:build !linux && !darwin

package fsys

import "os"

func fdatasync(f *os.File) error {
	return f.Sync()
}
