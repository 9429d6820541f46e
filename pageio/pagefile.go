package pageio

import (
	"fmt"
	"os"
	"sync"

	"github.com/dsnet/golib/memfile"
	"golang.org/x/sys/unix"

	rdberrs "github.com/my-db-dev/RapidDB/errs"
	"github.com/my-db-dev/RapidDB/wire"
)

// backingFile is the minimal contract PageFile needs from its backing
// store: a real *os.File, or an in-memory *memfile.File for tests and for
// engine.OpenInMemory.
type backingFile interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Sync() error
	Close() error
	Fd() (fd int, ok bool)
}

type osFile struct{ *os.File }

func (f osFile) Fd() (int, bool) { return int(f.File.Fd()), true }

type memBackedFile struct{ *memfile.File }

func (f memBackedFile) Fd() (int, bool) { return 0, false }

// PageFile encapsulates one open file, reading/writing exactly PAGE_SIZE
// bytes at pid*PAGE_SIZE (spec §4.2). The file is synced on Close.
type PageFile struct {
	mu       sync.Mutex
	file     backingFile
	pageSize uint32
	path     string
}

// OpenFile opens (or creates, if create is true) a real on-disk page file.
func OpenFile(path string, pageSize uint32, create bool) (*PageFile, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, rdberrs.Wrap("pageio.OpenFile", rdberrs.FileOpenFailed, err)
	}
	return &PageFile{file: osFile{f}, pageSize: pageSize, path: path}, nil
}

// OpenMemory builds a PageFile backed by an in-memory memfile.File,
// grounded on github.com/dsnet/golib/memfile, used for tests and for
// engine.OpenInMemory.
func OpenMemory(pageSize uint32) *PageFile {
	return &PageFile{file: memBackedFile{memfile.New(nil)}, pageSize: pageSize, path: ":memory:"}
}

// ReadPage reads exactly PageSize bytes at pid*PageSize into buf.
func (pf *PageFile) ReadPage(pid wire.PageID, buf []byte) error {
	if uint32(len(buf)) != pf.pageSize {
		return fmt.Errorf("pageio: ReadPage buffer size %d != page size %d", len(buf), pf.pageSize)
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()
	off := int64(pid) * int64(pf.pageSize)
	n, err := pf.file.ReadAt(buf, off)
	if err != nil && n != len(buf) {
		return rdberrs.Wrap("pageio.PageFile.ReadPage", rdberrs.PageCRCMismatch, err)
	}
	return nil
}

// WritePage writes exactly PageSize bytes at pid*PageSize.
func (pf *PageFile) WritePage(pid wire.PageID, buf []byte) error {
	if uint32(len(buf)) != pf.pageSize {
		return fmt.Errorf("pageio: WritePage buffer size %d != page size %d", len(buf), pf.pageSize)
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()
	off := int64(pid) * int64(pf.pageSize)
	if _, err := pf.file.WriteAt(buf, off); err != nil {
		return rdberrs.Wrap("pageio.PageFile.WritePage", rdberrs.FileOpenFailed, err)
	}
	return nil
}

// Close fsyncs and, for real files, issues an advisory unlock before
// closing, mirroring how gdbx manages raw descriptors for its paged store.
func (pf *PageFile) Close() error {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	_ = pf.file.Sync()
	if fd, ok := pf.file.Fd(); ok {
		_ = unix.Flock(fd, unix.LOCK_UN)
	}
	return pf.file.Close()
}

// Lock takes an advisory exclusive flock on the underlying descriptor, a
// no-op for in-memory-backed files.
func (pf *PageFile) Lock() error {
	fd, ok := pf.file.Fd()
	if !ok {
		return nil
	}
	return unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
}

// Handle is one slot in the bounded pool of PageFile handles an IndexTree
// keeps (spec §4.2: "up to max_page_file_count").
type Handle struct {
	pf  *PageFile
	pos int
}

// HandlePool bounds per-index I/O concurrency by capping how many
// PageFile handles (all pointing at the same underlying file/path) may be
// in use concurrently; ApplyFile blocks until one is free.
type HandlePool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	handles []*PageFile
	busy    []bool
}

// NewInMemoryHandlePool wraps an already-open in-memory PageFile (built
// via OpenMemory) as a single-handle pool, for engine.OpenInMemory. A
// memfile.File has no real fd to contend over, so one shared handle
// serialized by PageFile's own mutex is sufficient.
func NewInMemoryHandlePool(pf *PageFile) *HandlePool {
	hp := &HandlePool{handles: []*PageFile{pf}, busy: []bool{false}}
	hp.cond = sync.NewCond(&hp.mu)
	return hp
}

// NewHandlePool opens up to maxHandles PageFile handles against path.
func NewHandlePool(path string, pageSize uint32, maxHandles int) (*HandlePool, error) {
	hp := &HandlePool{}
	hp.cond = sync.NewCond(&hp.mu)
	for i := 0; i < maxHandles; i++ {
		pf, err := OpenFile(path, pageSize, false)
		if err != nil {
			for _, h := range hp.handles {
				_ = h.Close()
			}
			return nil, err
		}
		hp.handles = append(hp.handles, pf)
		hp.busy = append(hp.busy, false)
	}
	return hp, nil
}

// ApplyFile blocks (bounded only by progress, per spec §5) until a handle
// is free and returns it.
func (hp *HandlePool) ApplyFile() *Handle {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	for {
		for i, b := range hp.busy {
			if !b {
				hp.busy[i] = true
				return &Handle{pf: hp.handles[i], pos: i}
			}
		}
		hp.cond.Wait()
	}
}

// Release returns h to the pool.
func (hp *HandlePool) Release(h *Handle) {
	hp.mu.Lock()
	hp.busy[h.pos] = false
	hp.mu.Unlock()
	hp.cond.Signal()
}

// File exposes the underlying PageFile for I/O.
func (h *Handle) File() *PageFile { return h.pf }

// Close closes every handle in the pool (used by IndexTree.close).
func (hp *HandlePool) Close() error {
	hp.mu.Lock()
	defer hp.mu.Unlock()
	var firstErr error
	for _, pf := range hp.handles {
		if err := pf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
