package watchdir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestLoop(t *testing.T) {
	t.Run("runs tasks in order", func(t *testing.T) {
		l := newLoop()
		var order []int
		errDone := errors.New("done")
		for i := 0; i < 5; i++ {
			l.post(func() {
				order = append(order, i)
			})
		}
		l.post(func() {
			l.interrupt(errDone)
		})

		require.ErrorIs(t, l.run(), errDone, "wrong reason")
		require.Equal(t, []int{0, 1, 2, 3, 4}, order, "wrong task order")
	})
	t.Run("async continuation runs on the loop", func(t *testing.T) {
		l := newLoop()
		errDone := errors.New("done")
		result := 0
		l.async(func() func() {
			value := 42
			return func() {
				result = value
				l.interrupt(errDone)
			}
		})

		require.ErrorIs(t, l.run(), errDone, "wrong reason")
		require.Equal(t, 42, result, "continuation not run")
	})
	t.Run("stop drops late continuations", func(t *testing.T) {
		l := newLoop()
		release := make(chan struct{})
		ran := false
		l.async(func() func() {
			<-release
			return func() {
				ran = true
			}
		})
		l.post(func() {})
		l.stop()
		close(release)
		l.waitIdle()

		require.False(t, ran, "continuation ran after stop")
		require.ErrorIs(t, l.run(), errLoopStopped, "wrong reason")
	})
	t.Run("wait idle", func(t *testing.T) {
		l := newLoop()
		errDone := errors.New("done")
		var eg errgroup.Group
		eg.Go(l.run)

		count := 0
		for i := 0; i < 10; i++ {
			l.async(func() func() {
				return func() {
					count++
				}
			})
		}
		l.waitIdle()
		require.Equal(t, 10, count, "not all continuations ran")

		l.interrupt(errDone)
		require.ErrorIs(t, eg.Wait(), errDone, "wrong reason")
	})
	t.Run("first interrupt wins", func(t *testing.T) {
		l := newLoop()
		first := errors.New("first")
		l.interrupt(first)
		l.interrupt(errors.New("second"))
		require.ErrorIs(t, l.run(), first, "wrong reason")
	})
}
