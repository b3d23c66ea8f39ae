package packet

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// SyncPacket is an E1.31 synchronization PDU: a release trigger for data
// packets holding for its synchronization address.
type SyncPacket struct {
	CID      uuid.UUID
	Sequence uint8
	SyncAddr uint16
}

func (*SyncPacket) packet() {}

// parseSyncPacket decodes the synchronization framing layer. buf starts at
// the framing layer flags+length field.
func parseSyncPacket(cid uuid.UUID, buf []byte) (*SyncPacket, error) {
	if len(buf) < syncFramingSize {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, sync framing needs %d", len(buf), syncFramingSize)
	}

	// Flags and Length (2 bytes) - the sync framing layer is fixed-size
	framingLen, err := parseFlagsLength(binary.BigEndian.Uint16(buf[0:2]))
	if err != nil {
		return nil, err
	}
	if framingLen != syncFramingSize || len(buf) != syncFramingSize {
		return nil, errParse(ErrPduInvalidLength, "sync framing length %d, %d bytes remain", framingLen, len(buf))
	}

	// Vector (4 bytes) - already matched by the root dispatcher
	if v := binary.BigEndian.Uint32(buf[2:6]); v != VectorE131Sync {
		return nil, errParse(ErrPduInvalidVector, "sync framing vector 0x%08x", v)
	}

	// Sequence Number (1 byte)
	sequence := buf[6]

	// Synchronization Address (2 bytes) - zero is not a valid rendezvous
	syncAddr := binary.BigEndian.Uint16(buf[7:9])
	if !ValidUniverse(syncAddr) {
		return nil, errParse(ErrParseInvalidSyncAddr, "synchronization address %d", syncAddr)
	}

	// Reserved (2 bytes) - ignored on receive

	return &SyncPacket{
		CID:      cid,
		Sequence: sequence,
		SyncAddr: syncAddr,
	}, nil
}

// Pack serializes the sync packet, root layer included.
func (p *SyncPacket) Pack() ([]byte, error) {
	if !ValidUniverse(p.SyncAddr) {
		return nil, errParse(ErrPackInvalidData, "sync packet synchronization address %d", p.SyncAddr)
	}

	buf := make([]byte, syncPacketSize)

	// Root Layer (38 bytes)
	packRoot(buf, VectorRootE131Extended, p.CID)

	// Framing Layer (11 bytes, starting at offset 38)
	binary.BigEndian.PutUint16(buf[38:40], flagsLength(syncFramingSize))
	binary.BigEndian.PutUint32(buf[40:44], VectorE131Sync)
	buf[44] = p.Sequence
	binary.BigEndian.PutUint16(buf[45:47], p.SyncAddr)
	// Reserved (2 bytes) - transmitted as zero

	return buf, nil
}
