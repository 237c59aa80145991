// Package audio provides the platform output sinks the engine writes to.
// Every sink takes interleaved stereo float32 frames through a blocking
// WriteSamples call; the block is what paces the engine's write loop.
package audio

import (
	"errors"
	"fmt"
	"sync"
)

// Sink is a realtime audio output. WriteSamples blocks until the sink has
// accepted the whole buffer; that backpressure is the caller's clock.
type Sink interface {
	// Start begins consumption. Must be called before WriteSamples.
	Start() error
	// WriteSamples blocks until all interleaved stereo samples are accepted.
	WriteSamples(samples []float32) error
	// Close releases the sink. Pending samples may be dropped. Idempotent.
	Close() error
}

// ErrSinkClosed is returned by WriteSamples after Close.
var ErrSinkClosed = errors.New("audio: sink closed")

// ring is a bounded float32 FIFO bridging the engine's push loop to a
// pull-style consumer. Writers block while full, so the consumer's drain
// rate paces the producer. Readers never block: a drained ring yields
// silence, which is an underrun at the consumer, not a producer stall.
type ring struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	buf      []float32
	head     int
	tail     int
	size     int
	closed   bool
	short    uint64 // samples of silence handed out while empty
}

func newRing(capacity int) *ring {
	r := &ring{buf: make([]float32, capacity)}
	r.notFull = sync.NewCond(&r.mu)
	return r
}

func (r *ring) write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		for r.size == len(r.buf) && !r.closed {
			r.notFull.Wait()
		}
		if r.closed {
			return ErrSinkClosed
		}
		r.buf[r.tail] = s
		r.tail = (r.tail + 1) % len(r.buf)
		r.size++
	}
	return nil
}

// read fills dst, padding with silence if the ring runs dry.
func (r *ring) read(dst []float32) {
	r.mu.Lock()
	for i := range dst {
		if r.size == 0 {
			dst[i] = 0
			r.short++
			continue
		}
		dst[i] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.size--
	}
	r.mu.Unlock()
	r.notFull.Broadcast()
}

func (r *ring) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.notFull.Broadcast()
}

func (r *ring) shortfall() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.short
}

// ErrDeviceUnavailable wraps platform failures to open the output device.
var ErrDeviceUnavailable = errors.New("audio: output device unavailable")

func deviceErr(err error) error {
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}
