package pager

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrLockedByOther mirrors the teacher's ErrWriteByOther: the file is
// already held open for writing by another process. Spec.md §5 is
// single-writer, single-process only, so Create/Open take an
// advisory lock the way sidb's sys.go does: exclusive for read-write,
// shared for read-only.
var ErrLockedByOther = errors.New("pager: database already opened for writing by another process")

func flock(p *Pager) error {
	how := unix.LOCK_SH
	if !p.readOnly {
		how = unix.LOCK_EX
	}
	err := unix.Flock(int(p.file.Fd()), how|unix.LOCK_NB)
	if err == nil {
		return nil
	}
	if err == unix.EWOULDBLOCK || err == unix.EAGAIN {
		return ErrLockedByOther
	}
	return errors.Wrap(err, "flock failed")
}

func funlock(p *Pager) error {
	return unix.Flock(int(p.file.Fd()), unix.LOCK_UN)
}

// mmapWindow maps sz bytes of the file starting at offset 0. Spec.md
// §4.1's rationale: the mapping is pre-sized to P·MaxPage up front so
// that typed page views never dangle due to a later remap — unlike
// the teacher, which doubles an initially small mapping as the file
// grows, relcore maps the full maximum window exactly once.
func mmapWindow(p *Pager, sz int) ([]byte, error) {
	prot := unix.PROT_READ
	if !p.readOnly {
		prot |= unix.PROT_WRITE
	}
	b, err := unix.Mmap(int(p.file.Fd()), 0, sz, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap failed")
	}
	if err := unix.Madvise(b, unix.MADV_RANDOM); err != nil {
		_ = unix.Munmap(b)
		return nil, errors.Wrap(err, "madvise failed")
	}
	return b, nil
}

func munmapWindow(b []byte) error {
	if b == nil {
		return nil
	}
	return errors.Wrap(unix.Munmap(b), "munmap failed")
}
