package pool

import "sync"

var (
	defaultOnce sync.Once
	defaultPool *BufferPool
)

// Default returns a process-wide pool of DefaultBufferSize buffers so all
// servers in a process share recycled memory.
func Default() *BufferPool {
	defaultOnce.Do(func() {
		defaultPool = New(DefaultBufferSize)
	})
	return defaultPool
}
