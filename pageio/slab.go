// Package pageio implements the two lowest-level collaborators of the
// storage engine (spec §4.1/§4.2): a fixed-size buffer slab and the
// fixed-size-page file abstraction built on top of it.
package pageio

import (
	"sync"
	"sync/atomic"

	"github.com/ncw/directio"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
)

// Slab is a thread-safe allocator handing out zero-initialised, page-
// aligned buffers of the page size or one of a small set of record sizes
// (spec §4.1). All page and record bytes originate here so eviction frees
// memory in a predictable, accounted way.
//
// Buffers are allocated page-aligned via directio.AlignedBlock so that a
// PageFile opened O_DIRECT later can read/write them without a bounce
// buffer.
type Slab struct {
	ceiling   int64 // configured byte ceiling; 0 means unbounded
	allocated int64 // current outstanding bytes, atomically maintained

	mu   sync.Mutex
	pool map[int][][]byte // size class -> free buffers
}

// NewSlab creates an allocator with the given outstanding-byte ceiling.
// ceiling <= 0 means unbounded.
func NewSlab(ceiling int64) *Slab {
	return &Slab{ceiling: ceiling, pool: make(map[int][][]byte)}
}

// Apply returns a zero-initialised buffer of at least n bytes, reusing a
// freed buffer of the same size class when one is available.
func (s *Slab) Apply(n int) ([]byte, error) {
	if s.ceiling > 0 {
		if atomic.AddInt64(&s.allocated, int64(n)) > s.ceiling {
			atomic.AddInt64(&s.allocated, -int64(n))
			return nil, rdberrs.New("pageio.Slab.Apply", rdberrs.ExceedLimit)
		}
	} else {
		atomic.AddInt64(&s.allocated, int64(n))
	}

	s.mu.Lock()
	free := s.pool[n]
	var buf []byte
	if len(free) > 0 {
		buf = free[len(free)-1]
		s.pool[n] = free[:len(free)-1]
		s.mu.Unlock()
		for i := range buf {
			buf[i] = 0
		}
		return buf, nil
	}
	s.mu.Unlock()

	buf = directio.AlignedBlock(alignUp(n))[:n]
	return buf, nil
}

// Release returns a buffer to the slab for reuse. n must be the size it
// was originally requested with.
func (s *Slab) Release(buf []byte, n int) {
	if len(buf) != n {
		panic("pageio.Slab.Release: size mismatch")
	}
	s.mu.Lock()
	s.pool[n] = append(s.pool[n], buf)
	s.mu.Unlock()
	atomic.AddInt64(&s.allocated, -int64(n))
}

// Outstanding reports current outstanding bytes, for telemetry.
func (s *Slab) Outstanding() int64 { return atomic.LoadInt64(&s.allocated) }

func alignUp(n int) int {
	const align = directio.BlockSize
	if n%align == 0 {
		return n
	}
	return (n/align + 1) * align
}
