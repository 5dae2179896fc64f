package tree

import (
	"io/fs"
	"sort"
)

// Entries is the last-known metadata of the entries in a single directory, keyed by base name.
type Entries struct {
	infos map[string]fs.FileInfo
}

func NewEntries() *Entries {
	return &Entries{
		infos: make(map[string]fs.FileInfo),
	}
}

// Get returns the metadata recorded for name, or nil if the name is unknown.
func (e *Entries) Get(name string) fs.FileInfo {
	return e.infos[name]
}

// Set records info for name and returns whatever was recorded before.
func (e *Entries) Set(name string, info fs.FileInfo) fs.FileInfo {
	prev := e.infos[name]
	e.infos[name] = info
	return prev
}

// Delete forgets name and returns its last-known metadata.
func (e *Entries) Delete(name string) fs.FileInfo {
	prev, ok := e.infos[name]
	if !ok {
		return nil
	}
	delete(e.infos, name)
	return prev
}

func (e *Entries) Len() int {
	return len(e.infos)
}

// Names returns the recorded names in lexical order.
func (e *Entries) Names() []string {
	names := make([]string, 0, len(e.infos))
	for name := range e.infos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Missing returns the recorded names, in lexical order, that are not in present.
func (e *Entries) Missing(present map[string]struct{}) []string {
	var missing []string
	for _, name := range e.Names() {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Changed reports whether two snapshots of the same entry differ in size or modification time.
func Changed(prev, next fs.FileInfo) bool {
	if prev.Size() != next.Size() {
		return true
	}
	return !prev.ModTime().Equal(next.ModTime())
}

// Replaced reports whether next describes a different entry than prev under the same name: a
// file that became a directory or the other way around, or a directory that was removed and
// created again.
func Replaced(prev, next fs.FileInfo) bool {
	if prev.IsDir() != next.IsDir() {
		return true
	}
	return prev.IsDir() && !sameFile(prev, next)
}
