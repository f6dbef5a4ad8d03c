// Package doublebuffer provides a read/write buffer pair rebuilt off the
// render thread. Readers always see the last completed snapshot; a rebuild
// fills the write side and publishes it with a pointer swap.
package doublebuffer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-details/internal/logger"
)

// InitFunc prepares the write buffer before a rebuild.
type InitFunc[T any] func(write *T)

// UpdateFunc fills a fresh scratch buffer for one item of a rebuild.
type UpdateFunc[T any] func(scratch *T, index int) error

// MergeFunc folds a filled scratch buffer into the write buffer.
type MergeFunc[T any] func(write, scratch *T)

// Manager owns two buffers of T. At most one rebuild runs at a time.
type Manager[T any] struct {
	newFn func() *T

	read  atomic.Pointer[T]
	write *T

	mu      sync.Mutex // guards busy, write and the swap
	busy    bool
	onError func(error)
	lastErr error

	swaps atomic.Uint64
	wg    sync.WaitGroup
}

// New returns a manager whose buffers and scratch buffers come from newFn.
func New[T any](newFn func() *T) *Manager[T] {
	m := &Manager[T]{newFn: newFn, write: newFn()}
	m.read.Store(newFn())
	return m
}

// GetData returns the last completed snapshot. It never blocks.
func (m *Manager[T]) GetData() *T {
	return m.read.Load()
}

// CreateData hands both buffers to fn for direct initialization and clears
// the busy flag.
func (m *Manager[T]) CreateData(fn func(read, write *T)) {
	m.wg.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.read.Load(), m.write)
	m.busy = false
}

// OnError sets a callback receiving background rebuild failures.
func (m *Manager[T]) OnError(fn func(error)) {
	m.mu.Lock()
	m.onError = fn
	m.mu.Unlock()
}

// LastError returns the most recent rebuild failure, or nil once a rebuild
// has succeeded since.
func (m *Manager[T]) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Busy reports whether a rebuild is in flight.
func (m *Manager[T]) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Swaps returns the number of snapshots published so far.
func (m *Manager[T]) Swaps() uint64 {
	return m.swaps.Load()
}

// Wait blocks until the in-flight rebuild, if any, has finished.
func (m *Manager[T]) Wait() {
	m.wg.Wait()
}

// UpdateDataSlow rebuilds on the calling goroutine and publishes the result
// before returning. It first waits for any background rebuild. A zero count
// does nothing. When update fails or panics the snapshot is left as it was
// and the busy flag is cleared.
func (m *Manager[T]) UpdateDataSlow(init InitFunc[T], update UpdateFunc[T], merge MergeFunc[T], count int) error {
	if count == 0 {
		return nil
	}

	m.mu.Lock()
	for m.busy {
		m.mu.Unlock()
		m.wg.Wait()
		m.mu.Lock()
	}
	m.busy = true
	m.mu.Unlock()

	err := m.safeRebuild(init, update, merge, count)
	m.finish(err)
	return err
}

// UpdateData starts a background rebuild and reports whether it did. The
// request is dropped, not queued, when a rebuild is already in flight or
// count is zero. A rebuild that fails or panics clears the busy flag
// without publishing, so readers keep the previous snapshot.
func (m *Manager[T]) UpdateData(init InitFunc[T], update UpdateFunc[T], merge MergeFunc[T], count int) bool {
	if count == 0 {
		return false
	}

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		logger.Debug("rebuild already in flight, request dropped")
		return false
	}
	m.busy = true
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		err := m.safeRebuild(init, update, merge, count)
		if err != nil {
			logger.Error("background rebuild failed", zap.Error(err))
		}
		m.finish(err)
	}()
	return true
}

// safeRebuild runs rebuild and turns a panic into an error.
func (m *Manager[T]) safeRebuild(init InitFunc[T], update UpdateFunc[T], merge MergeFunc[T], count int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rebuild panicked: %v", r)
		}
	}()
	return m.rebuild(init, update, merge, count)
}

func (m *Manager[T]) rebuild(init InitFunc[T], update UpdateFunc[T], merge MergeFunc[T], count int) error {
	if init != nil {
		init(m.write)
	}
	for i := 0; i < count; i++ {
		scratch := m.newFn()
		if err := update(scratch, i); err != nil {
			return fmt.Errorf("rebuild item %d: %w", i, err)
		}
		merge(m.write, scratch)
	}
	return nil
}

// finish publishes the write buffer on success and clears busy either way.
func (m *Manager[T]) finish(err error) {
	m.mu.Lock()
	if err == nil {
		m.write = m.read.Swap(m.write)
		m.swaps.Add(1)
	}
	m.lastErr = err
	m.busy = false
	onError := m.onError
	m.mu.Unlock()

	if err != nil && onError != nil {
		onError(err)
	}
}
