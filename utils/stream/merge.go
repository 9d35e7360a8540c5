package stream

import (
	"sync"
)

// Merge joins several streams into one. Each source is
// consumed by its own goroutine so values from one source
// keep their relative order while values from different
// sources interleave arbitrarily. The merged stream ends
// once every source has ended or as soon as any source
// fails, in which case Error returns the first failure.
// Close stops consumption and closes every source that
// can be closed.
func Merge(sources ...Stream) *Merged {
	merged := &Merged{
		sources: sources,
		values:  make(chan interface{}),
		done:    make(chan struct{}),
	}

	merged.wg.Add(len(sources))

	for _, source := range sources {
		go merged.pump(source)
	}

	go func() {
		merged.wg.Wait()
		close(merged.values)
	}()

	return merged
}

// Merged is the stream returned by Merge
type Merged struct {
	sources   []Stream
	values    chan interface{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu    sync.Mutex
	value interface{}
	err   error
}

func (merged *Merged) pump(source Stream) {
	defer merged.wg.Done()

	for source.Next() {
		select {
		case merged.values <- source.Value():
		case <-merged.done:
			return
		}
	}

	if err := source.Error(); err != nil {
		merged.fail(err)
	}
}

func (merged *Merged) fail(err error) {
	merged.mu.Lock()

	if merged.err == nil {
		merged.err = err
	}

	merged.mu.Unlock()
	merged.Close()
}

// Next implements Stream.Next
func (merged *Merged) Next() bool {
	select {
	case <-merged.done:
		merged.value = nil

		return false
	default:
	}

	select {
	case value, ok := <-merged.values:
		if !ok {
			merged.value = nil

			return false
		}

		merged.value = value

		return true
	case <-merged.done:
		merged.value = nil

		return false
	}
}

// Value implements Stream.Value
func (merged *Merged) Value() interface{} {
	return merged.value
}

// Error implements Stream.Error
func (merged *Merged) Error() error {
	merged.mu.Lock()
	defer merged.mu.Unlock()

	return merged.err
}

// Wait blocks until every source has stopped being consumed.
// It must not be called from a source or processor.
func (merged *Merged) Wait() {
	merged.wg.Wait()
}

// Close stops the merged stream and closes its sources
func (merged *Merged) Close() error {
	var err error

	merged.closeOnce.Do(func() {
		close(merged.done)

		for _, source := range merged.sources {
			if closeErr := Close(source); closeErr != nil && err == nil {
				err = closeErr
			}
		}
	})

	return err
}
