package chunked

import "sync"

// bufferPool holds read buffers of DefaultBufferSize bytes. Scanners with a
// custom buffer size allocate their own and never touch the pool.
var bufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, DefaultBufferSize)
		return &b
	},
}

// getBuffer returns a buffer of exactly size bytes and whether it came from
// the pool.
func getBuffer(size int) ([]byte, bool) {
	if size != DefaultBufferSize {
		return make([]byte, size), false
	}
	p := bufferPool.Get().(*[]byte)
	return *p, true
}

// putBuffer returns a pooled buffer. Buffers of any other size are dropped.
func putBuffer(buf []byte) {
	if cap(buf) != DefaultBufferSize {
		return
	}
	buf = buf[:cap(buf)]
	bufferPool.Put(&buf)
}
