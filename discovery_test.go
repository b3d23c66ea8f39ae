package sacn

import (
	"testing"
	"time"

	"github.com/gopatchy/sacn/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discoveryPage(page, lastPage uint8, universes []uint16) *packet.DiscoveryPacket {
	return &packet.DiscoveryPacket{
		CID:        cidA,
		SourceName: "page source",
		Page:       page,
		LastPage:   lastPage,
		Universes:  universes,
	}
}

func TestDiscoveredSourceSinglePage(t *testing.T) {
	now := time.Now()
	s := newDiscoveredSource(discoveryPage(0, 0, []uint16{1, 2, 3}), now)

	assert.True(t, s.complete())
	assert.Equal(t, []uint16{1, 2, 3}, s.Universes())
}

func TestDiscoveredSourcePagesOutOfOrder(t *testing.T) {
	now := time.Now()

	s := newDiscoveredSource(discoveryPage(1, 1, []uint16{600, 601}), now)
	assert.False(t, s.complete())

	s.applyPage(discoveryPage(0, 1, []uint16{1, 2}), now.Add(time.Millisecond))
	assert.True(t, s.complete())

	// Page order, not arrival order.
	assert.Equal(t, []uint16{1, 2, 600, 601}, s.Universes())
}

func TestDiscoveredSourcePageReplacement(t *testing.T) {
	now := time.Now()

	s := newDiscoveredSource(discoveryPage(0, 0, []uint16{1, 2}), now)
	s.applyPage(discoveryPage(0, 0, []uint16{5, 6}), now.Add(time.Millisecond))

	assert.True(t, s.complete())
	assert.Equal(t, []uint16{5, 6}, s.Universes())
}

func TestDiscoveredSourceLastPageFrozen(t *testing.T) {
	now := time.Now()

	s := newDiscoveredSource(discoveryPage(0, 2, []uint16{1}), now)
	s.applyPage(discoveryPage(2, 2, []uint16{500}), now)
	require.False(t, s.complete())

	// The last-page count is fixed by the first page seen; a later packet
	// declaring a different one neither revises it nor drops pages.
	s.applyPage(discoveryPage(1, 1, []uint16{100}), now)
	assert.Equal(t, uint8(2), s.LastPage)
	assert.True(t, s.complete())
	assert.Equal(t, []uint16{1, 100, 500}, s.Universes())
}

func TestDiscoveredSourceRemoveUniverse(t *testing.T) {
	now := time.Now()

	s := newDiscoveredSource(discoveryPage(0, 0, []uint16{1, 2, 3}), now)
	s.removeUniverse(2)
	assert.Equal(t, []uint16{1, 3}, s.Universes())
}

func TestDiscoveredSourceClone(t *testing.T) {
	now := time.Now()

	s := newDiscoveredSource(discoveryPage(0, 0, []uint16{1, 2}), now)
	c := s.clone()
	c.Pages[0].Universes[0] = 99

	assert.Equal(t, []uint16{1, 2}, s.Universes())
}
