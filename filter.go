package watchdir

import (
	"context"
	"path"
)

// Filter is an interface that can be implemented to instruct the watcher to ignore certain files entirely.
// Rejected directories are not descended into. Filters are called concurrently.
type Filter interface {
	// Filter returns true if the file should be scanned, and false if it should be ignored.
	Filter(ctx context.Context, filename string) (bool, error)
}

type FilterFunc func(ctx context.Context, filename string) (bool, error)

func (f FilterFunc) Filter(ctx context.Context, filename string) (bool, error) {
	return f(ctx, filename)
}

// ExcludeNames returns a filter rejecting every entry whose base name matches one of the
// path.Match patterns.
func ExcludeNames(patterns ...string) Filter {
	return FilterFunc(func(ctx context.Context, filename string) (bool, error) {
		base := path.Base(filename)
		for _, pattern := range patterns {
			matched, err := path.Match(pattern, base)
			if err != nil {
				return false, err
			}
			if matched {
				return false, nil
			}
		}
		return true, nil
	})
}
