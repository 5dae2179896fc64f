//go:build unix

package tree

import (
	"io/fs"
	"syscall"
)

// sameFile compares device and inode numbers. Metadata that does not carry them, like the one of
// in-memory file systems, is assumed to describe the same file.
func sameFile(a, b fs.FileInfo) bool {
	sa, ok := a.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	sb, ok := b.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	return sa.Dev == sb.Dev && sa.Ino == sb.Ino
}
