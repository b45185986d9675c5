package pager

import (
	"os"
	"testing"

	assertion "github.com/stretchr/testify/assert"
)

func tempPath(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "relcore-pager-*.db")
	if err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	f.Close()
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })
	return path
}

func TestCreateThenOpen(t *testing.T) {
	assert := assertion.New(t)
	path := tempPath(t)

	p, err := Create(path)
	assert.NoError(err)
	assert.Equal(uint32(1), p.PageCount())
	assert.Equal(uint8(0), p.Meta().TableNum)
	assert.Equal(NonePage, p.Meta().FirstFree)
	assert.NoError(p.Close())

	p2, err := Open(path, false)
	assert.NoError(err)
	assert.Equal(uint32(1), p2.PageCount())
	assert.Equal(uint8(0), p2.Meta().TableNum)
	assert.NoError(p2.Close())
}

func TestOpenInvalidSize(t *testing.T) {
	assert := assertion.New(t)
	path := tempPath(t)

	assert.NoError(os.WriteFile(path, make([]byte, 128), 0644))
	_, err := Open(path, false)
	assert.ErrorIs(err, ErrInvalidSize)
}

func TestOpenInvalidMagic(t *testing.T) {
	assert := assertion.New(t)
	path := tempPath(t)

	assert.NoError(os.WriteFile(path, make([]byte, PageSize), 0644))
	_, err := Open(path, false)
	assert.ErrorIs(err, ErrInvalidMagic)
}

func TestOpenInvalidVersion(t *testing.T) {
	assert := assertion.New(t)
	path := tempPath(t)

	p, err := Create(path)
	assert.NoError(err)
	p.Meta().Version = Version + 1
	assert.NoError(p.Close())

	_, err = Open(path, false)
	assert.Error(err)
}

func TestFreeListIsLIFO(t *testing.T) {
	assert := assertion.New(t)
	path := tempPath(t)

	p, err := Create(path)
	assert.NoError(err)
	defer p.Close()

	var ids []PageID
	for i := 0; i < 5; i++ {
		id, _ := p.AllocatePage()
		ids = append(ids, id)
	}

	p.DeallocatePage(ids[3])
	p.DeallocatePage(ids[2])
	p.DeallocatePage(ids[4])

	first, _ := p.AllocatePage()
	second, _ := p.AllocatePage()
	third, _ := p.AllocatePage()

	assert.Equal(ids[4], first)
	assert.Equal(ids[2], second)
	assert.Equal(ids[3], third)
}

func TestAllocatePageGrowsFile(t *testing.T) {
	assert := assertion.New(t)
	path := tempPath(t)

	p, err := Create(path)
	assert.NoError(err)
	defer p.Close()

	before := p.PageCount()
	id, page := p.AllocatePage()
	assert.Equal(before, uint32(id))
	assert.Equal(before+1, p.PageCount())
	assert.Len(page, PageSize)
}
