package sacn

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gopatchy/sacn/packet"
)

// UniversePage is one received page of a source's universe discovery list.
type UniversePage struct {
	Page      uint8
	Universes []uint16
}

// DiscoveredSource is a source seen via universe discovery, assembled from
// one or more pages. It lives in the partially-discovered set until every
// page [0, LastPage] has arrived.
type DiscoveredSource struct {
	Name        string
	CID         uuid.UUID
	LastUpdated time.Time
	LastPage    uint8
	Pages       []UniversePage
}

func newDiscoveredSource(p *packet.DiscoveryPacket, now time.Time) *DiscoveredSource {
	s := &DiscoveredSource{
		Name:        p.SourceName,
		CID:         p.CID,
		LastUpdated: now,
		LastPage:    p.LastPage,
	}
	s.applyPage(p, now)
	return s
}

// applyPage folds a discovery packet into the page set, replacing any page
// with the same number. The last-page count is fixed by the first page seen
// for the source; later packets never revise it.
func (s *DiscoveredSource) applyPage(p *packet.DiscoveryPacket, now time.Time) {
	s.Name = p.SourceName
	s.LastUpdated = now

	page := UniversePage{Page: p.Page, Universes: slices.Clone(p.Universes)}
	i, found := slices.BinarySearchFunc(s.Pages, page, func(a, b UniversePage) int {
		return int(a.Page) - int(b.Page)
	})
	if found {
		s.Pages[i] = page
	} else {
		s.Pages = slices.Insert(s.Pages, i, page)
	}
}

// complete reports whether every page [0, LastPage] has arrived.
func (s *DiscoveredSource) complete() bool {
	if len(s.Pages) != int(s.LastPage)+1 {
		return false
	}
	for i, pg := range s.Pages {
		if pg.Page != uint8(i) {
			return false
		}
	}
	return true
}

// Universes returns the concatenated universe list across all received
// pages, in page order.
func (s *DiscoveredSource) Universes() []uint16 {
	var universes []uint16
	for _, pg := range s.Pages {
		universes = append(universes, pg.Universes...)
	}
	return universes
}

// removeUniverse drops a universe from every page, used when a source
// terminates its stream on that universe.
func (s *DiscoveredSource) removeUniverse(universe uint16) {
	for i := range s.Pages {
		s.Pages[i].Universes = slices.DeleteFunc(s.Pages[i].Universes, func(u uint16) bool {
			return u == universe
		})
	}
}

// clone returns a deep copy safe to hand to callers.
func (s *DiscoveredSource) clone() DiscoveredSource {
	out := *s
	out.Pages = make([]UniversePage, len(s.Pages))
	for i, pg := range s.Pages {
		out.Pages[i] = UniversePage{Page: pg.Page, Universes: slices.Clone(pg.Universes)}
	}
	return out
}
