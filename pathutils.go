package watchdir

import (
	"path"
	"strings"
)

// rootDir turns a user supplied directory into the io/fs path of the watch root. Leading and
// trailing slashes are dropped and the empty path becomes ".".
func rootDir(name string) string {
	trimmed := strings.Trim(path.Clean("/"+name), "/")
	if trimmed == "" {
		return "."
	}
	return trimmed
}
