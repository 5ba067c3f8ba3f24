// Package fsys provides small filesystem sync helpers with per-platform
// implementations.
package fsys

import "os"

// Fdatasync flushes f's data to stable storage using the cheapest platform
// primitive that covers file contents.
func Fdatasync(f *os.File) error {
	return fdatasync(f)
}
