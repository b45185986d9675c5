// Package pager owns the backing file of a relcore database and the
// single memory-mapped window onto it. It allocates and frees
// fixed-size pages and maintains the intrusive free-page list anchored
// in the meta page (page 0). It knows nothing about tables, rows, or
// indexes — those are built on top by the catalog package.
package pager

import (
	"encoding/binary"
	"fmt"
	"os"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Pager owns the backing file and the mmap window onto it. It is not
// safe for concurrent use from multiple goroutines without external
// synchronization, matching spec.md §5's single-writer model.
type Pager struct {
	path     string
	file     *os.File
	data     []byte // len == PageSize*MaxPage, only `pages` of it is backed by the file
	pages    uint32
	readOnly bool
}

// Create creates or truncates the file at path, sizes it to one page,
// maps the full PageSize*MaxPage window onto it, and writes a fresh
// meta page. No memory is committed for pages beyond the current file
// size until the file is grown to cover them (spec.md §4.1).
func Create(path string) (*Pager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "pager: create")
	}
	if err := file.Truncate(PageSize); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "pager: truncate initial page")
	}

	p := &Pager{path: path, file: file, pages: 1}
	if err := flock(p); err != nil {
		file.Close()
		return nil, err
	}

	data, err := mmapWindow(p, PageSize*MaxPage)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.data = data

	meta := p.Meta()
	meta.Magic = MagicBytes
	meta.Version = Version
	meta.FirstFree = NonePage
	meta.TableNum = 0

	logrus.WithField("path", path).Debug("pager: created database file")
	return p, nil
}

// Open opens an existing database file. It fails with ErrInvalidSize
// unless the file length is a positive multiple of PageSize, and with
// ErrInvalidMagic if the meta page's magic tag doesn't match.
func Open(path string, readOnly bool) (*Pager, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "pager: open")
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "pager: stat")
	}
	size := info.Size()
	if size <= 0 || size%PageSize != 0 {
		file.Close()
		return nil, ErrInvalidSize
	}

	p := &Pager{path: path, file: file, pages: uint32(size / PageSize), readOnly: readOnly}
	if err := flock(p); err != nil {
		file.Close()
		return nil, err
	}

	data, err := mmapWindow(p, PageSize*MaxPage)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.data = data

	meta := p.Meta()
	if meta.Magic != MagicBytes {
		munmapWindow(data)
		file.Close()
		return nil, ErrInvalidMagic
	}
	if meta.Version != Version {
		munmapWindow(data)
		file.Close()
		return nil, errors.Errorf("pager: unsupported format version %d (want %d)", meta.Version, Version)
	}
	logrus.WithFields(logrus.Fields{"path": path, "pages": p.pages}).Debug("pager: opened database file")
	return p, nil
}

// Close unmaps the file and releases the advisory lock.
func (p *Pager) Close() error {
	if p.data != nil {
		if err := munmapWindow(p.data); err != nil {
			return err
		}
		p.data = nil
	}
	if p.file != nil {
		if !p.readOnly {
			if err := funlock(p); err != nil {
				logrus.WithError(err).Warn("pager: funlock failed")
			}
		}
		err := p.file.Close()
		p.file = nil
		return errors.Wrap(err, "pager: close")
	}
	return nil
}

// Flush requests that the host flush the mapped pages to disk. Per
// spec.md §5, this is optional — by default relcore relies on the
// host's page cache to persist eventually.
func (p *Pager) Flush() error {
	if p.readOnly || p.data == nil {
		return nil
	}
	sz := int(p.pages) * PageSize
	return errors.Wrap(unix.Msync(p.data[:sz], unix.MS_SYNC), "pager: msync")
}

// ReadOnly reports whether the pager was opened read-only.
func (p *Pager) ReadOnly() bool { return p.readOnly }

// PageCount returns the number of pages currently backed by the file.
func (p *Pager) PageCount() uint32 { return p.pages }

// Meta returns the typed view onto page 0.
func (p *Pager) Meta() *MetaPage {
	return (*MetaPage)(unsafe.Pointer(&p.data[0]))
}

// GetPage returns the raw byte window for page id. The slice is a
// borrow into the mmap: valid until the next AllocatePage call that
// might grow the file's committed page count past id, and must not be
// retained past that point (spec.md §4.1's "Rationale" and §5's
// "View lifetime").
func (p *Pager) GetPage(id PageID) []byte {
	if id == NonePage {
		panic("pager: GetPage called with NonePage")
	}
	if uint32(id) >= p.pages {
		panic(fmt.Sprintf("pager: page %d out of range (pages=%d)", id, p.pages))
	}
	off := uint32(id) * PageSize
	return p.data[off : off+PageSize : off+PageSize]
}

// AllocatePage pops the head of the free-page list if non-empty,
// otherwise extends the file by one page. The returned page is
// neither zeroed nor initialized; the caller must write a valid
// layout before releasing it.
func (p *Pager) AllocatePage() (PageID, []byte) {
	meta := p.Meta()
	if meta.FirstFree != NonePage {
		id := meta.FirstFree
		page := p.GetPage(id)
		next := PageID(binary.LittleEndian.Uint32(page[0:4]))
		meta.FirstFree = next
		return id, page
	}

	id := PageID(p.pages)
	newSize := int64(p.pages+1) * PageSize
	if err := p.file.Truncate(newSize); err != nil {
		fatal("grow file", err)
	}
	p.pages++
	return id, p.GetPage(id)
}

// PageIDOf recovers the page id of a byte slice previously returned
// by GetPage or AllocatePage, by pointer arithmetic against the
// single mmap window. Used where a page's own id must be known from
// a typed view without threading it through separately (e.g. a
// table-meta page's ring links must reference itself).
func (p *Pager) PageIDOf(page []byte) PageID {
	base := uintptr(unsafe.Pointer(&p.data[0]))
	off := uintptr(unsafe.Pointer(&page[0])) - base
	return PageID(off / PageSize)
}

// DeallocatePage pushes id onto the head of the free-page list by
// writing the current head into the first word of id's page.
func (p *Pager) DeallocatePage(id PageID) {
	meta := p.Meta()
	page := p.GetPage(id)
	binary.LittleEndian.PutUint32(page[0:4], uint32(meta.FirstFree))
	meta.FirstFree = id
}
