package regio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
)

// DevMem is the physical memory device used for real register windows.
const DevMem = "/dev/mem"

// MMIOBus accesses a window of memory-mapped registers. Every access is a
// single aligned 32-bit load or store.
type MMIOBus struct {
	mu     sync.Mutex
	mem    mmap.MMap
	start  uintptr
	size   uint32
	closed bool
}

// OpenMMIO maps size bytes of path starting at physical address base.
// Because mappings must start on a page boundary the base is rounded down and
// the register window starts at the remainder.
func OpenMMIO(path string, base uint64, size uint32) (*MMIOBus, error) {
	flags := os.O_RDWR
	if path == DevMem {
		flags |= os.O_SYNC
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %w", path, err)
	}
	defer f.Close()

	pageSize := uint64(os.Getpagesize())
	mapBase := base &^ (pageSize - 1)
	start := uintptr(base - mapBase)

	mem, err := mmap.MapRegion(f, int(start)+int(size), mmap.RDWR, 0, int64(mapBase))
	if err != nil {
		return nil, fmt.Errorf("couldn't map %#x+%#x of %s: %w", base, size, path, err)
	}
	return &MMIOBus{mem: mem, start: start, size: size}, nil
}

func (b *MMIOBus) reg(offset uint32) (*uint32, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if offset%4 != 0 || uint64(offset)+4 > uint64(b.size) {
		return nil, fmt.Errorf("%w: %#x (window %#x)", ErrOutOfBounds, offset, b.size)
	}
	return (*uint32)(unsafe.Pointer(&b.mem[b.start+uintptr(offset)])), nil
}

// Read loads the register at offset.
func (b *MMIOBus) Read(offset uint32) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, err := b.reg(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(r), nil
}

// Write performs a read-modify-write of the register at offset.
func (b *MMIOBus) Write(offset, mask, value uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, err := b.reg(offset)
	if err != nil {
		return err
	}
	v := atomic.LoadUint32(r)
	atomic.StoreUint32(r, (v&^mask)|(value&mask))
	return nil
}

// Flush writes dirty pages back when the window is backed by a regular file.
func (b *MMIOBus) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	return b.mem.Flush()
}

// Close unmaps the window. It is safe to call Close multiple times.
func (b *MMIOBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.mem.Unmap()
}

// Compile-time interface satisfaction check.
var _ Bus = (*MMIOBus)(nil)
