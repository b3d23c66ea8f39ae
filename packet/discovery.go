package packet

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// DiscoveryPacket is an E1.31 universe discovery PDU: one page of the
// strictly ascending universe list a source is transmitting on.
type DiscoveryPacket struct {
	CID        uuid.UUID
	SourceName string
	Page       uint8
	LastPage   uint8
	Universes  []uint16
}

func (*DiscoveryPacket) packet() {}

// parseDiscoveryPacket decodes the universe discovery framing layer and its
// universe list sub-PDU. buf starts at the framing layer flags+length field.
func parseDiscoveryPacket(cid uuid.UUID, buf []byte) (*DiscoveryPacket, error) {
	if len(buf) < discoveryFramingSize+discoveryListHeader {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, discovery framing needs %d", len(buf), discoveryFramingSize+discoveryListHeader)
	}

	// Flags and Length (2 bytes)
	framingLen, err := parseFlagsLength(binary.BigEndian.Uint16(buf[0:2]))
	if err != nil {
		return nil, err
	}
	if framingLen > len(buf) {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, discovery framing declares %d", len(buf), framingLen)
	}
	if framingLen != len(buf) || framingLen < discoveryFramingSize+discoveryListHeader {
		return nil, errParse(ErrPduInvalidLength, "discovery framing length %d, %d bytes remain", framingLen, len(buf))
	}

	// Vector (4 bytes) - already matched by the root dispatcher
	if v := binary.BigEndian.Uint32(buf[2:6]); v != VectorE131Discovery {
		return nil, errParse(ErrPduInvalidVector, "discovery framing vector 0x%08x", v)
	}

	// Source Name (64 bytes)
	name, err := parseSourceName(buf[6:70])
	if err != nil {
		return nil, err
	}

	// Reserved (4 bytes) - ignored on receive

	list := buf[discoveryFramingSize:]

	// Universe Discovery Layer: Flags and Length (2 bytes)
	listLen, err := parseFlagsLength(binary.BigEndian.Uint16(list[0:2]))
	if err != nil {
		return nil, err
	}
	if listLen != len(list) {
		return nil, errParse(ErrPduInvalidLength, "universe list length %d, %d bytes remain", listLen, len(list))
	}
	if listLen < discoveryListHeader || listLen > discoveryListHeader+2*DiscoveryUniversesPerPage {
		return nil, errParse(ErrPduInvalidLength, "universe list length %d", listLen)
	}
	if (listLen-discoveryListHeader)%2 != 0 {
		return nil, errParse(ErrParseInsufficientData, "universe list has trailing odd byte")
	}

	// Vector (4 bytes)
	if v := binary.BigEndian.Uint32(list[2:6]); v != VectorUniverseDiscovery {
		return nil, errParse(ErrPduInvalidVector, "universe list vector 0x%08x", v)
	}

	// Page (1 byte), Last Page (1 byte)
	page, lastPage := list[6], list[7]
	if page > lastPage {
		return nil, errParse(ErrParseInvalidPage, "page %d past last page %d", page, lastPage)
	}

	count := (listLen - discoveryListHeader) / 2
	universes := make([]uint16, count)
	for i := 0; i < count; i++ {
		universes[i] = binary.BigEndian.Uint16(list[discoveryListHeader+i*2 : discoveryListHeader+i*2+2])
		if i > 0 && universes[i] <= universes[i-1] {
			return nil, errParse(ErrParseInvalidUniverseOrder, "universe %d after %d", universes[i], universes[i-1])
		}
	}

	return &DiscoveryPacket{
		CID:        cid,
		SourceName: name,
		Page:       page,
		LastPage:   lastPage,
		Universes:  universes,
	}, nil
}

// Pack serializes the discovery packet, root layer included.
func (p *DiscoveryPacket) Pack() ([]byte, error) {
	if len(p.Universes) > DiscoveryUniversesPerPage {
		return nil, errParse(ErrPackInvalidData, "discovery page holds %d universes, max %d", len(p.Universes), DiscoveryUniversesPerPage)
	}
	if p.Page > p.LastPage {
		return nil, errParse(ErrPackInvalidData, "discovery page %d past last page %d", p.Page, p.LastPage)
	}
	for i := 1; i < len(p.Universes); i++ {
		if p.Universes[i] <= p.Universes[i-1] {
			return nil, errParse(ErrPackInvalidData, "discovery universe %d after %d", p.Universes[i], p.Universes[i-1])
		}
	}

	buf := make([]byte, discoveryHeaderSize+2*len(p.Universes))

	// Root Layer (38 bytes)
	packRoot(buf, VectorRootE131Extended, p.CID)

	// Framing Layer (74 bytes, starting at offset 38)
	binary.BigEndian.PutUint16(buf[38:40], flagsLength(len(buf)-38))
	binary.BigEndian.PutUint32(buf[40:44], VectorE131Discovery)
	if err := packSourceName(buf[44:108], p.SourceName); err != nil {
		return nil, err
	}
	// Reserved (4 bytes) - transmitted as zero

	// Universe Discovery Layer (8 + 2n bytes, starting at offset 112)
	binary.BigEndian.PutUint16(buf[112:114], flagsLength(len(buf)-112))
	binary.BigEndian.PutUint32(buf[114:118], VectorUniverseDiscovery)
	buf[118] = p.Page
	buf[119] = p.LastPage
	for i, u := range p.Universes {
		binary.BigEndian.PutUint16(buf[120+i*2:122+i*2], u)
	}

	return buf, nil
}
