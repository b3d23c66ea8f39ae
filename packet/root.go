package packet

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// Packet is a parsed E1.31 PDU: one of *DataPacket, *SyncPacket or
// *DiscoveryPacket.
type Packet interface {
	// Pack serializes the packet, including the ACN root layer.
	Pack() ([]byte, error)

	packet()
}

// Parse decodes a full sACN datagram starting at the ACN root layer and
// returns the framing-layer variant selected by the root vector.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < rootLayerSize {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, root layer needs %d", len(buf), rootLayerSize)
	}

	// Preamble Size (2 bytes)
	if v := binary.BigEndian.Uint16(buf[0:2]); v != preambleSize {
		return nil, errParse(ErrParseInvalidData, "preamble size 0x%04x", v)
	}
	// Post-amble Size (2 bytes)
	if v := binary.BigEndian.Uint16(buf[2:4]); v != postambleSize {
		return nil, errParse(ErrParseInvalidData, "post-amble size 0x%04x", v)
	}
	// ACN Packet Identifier (12 bytes)
	if [12]byte(buf[4:16]) != acnIdentifier {
		return nil, errParse(ErrParseInvalidData, "acn packet identifier %q", buf[4:16])
	}

	// Flags and Length (2 bytes) - length counted from after the identifier
	rootLen, err := parseFlagsLength(binary.BigEndian.Uint16(buf[16:18]))
	if err != nil {
		return nil, err
	}
	if len(buf) < 16+rootLen {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, root pdu declares %d", len(buf), 16+rootLen)
	}
	buf = buf[:16+rootLen]
	if len(buf) < rootLayerSize {
		return nil, errParse(ErrPduInvalidLength, "root pdu length %d", rootLen)
	}

	// CID (16 bytes)
	cid, err := uuid.FromBytes(buf[22:38])
	if err != nil {
		return nil, errParse(ErrUUID, "cid %x", buf[22:38])
	}

	rest := buf[rootLayerSize:]

	// Vector (4 bytes) selects the framing layer variant.
	switch vector := binary.BigEndian.Uint32(buf[18:22]); vector {
	case VectorRootE131Data:
		return parseDataPacket(cid, rest)
	case VectorRootE131Extended:
		if len(rest) < 6 {
			return nil, errParse(ErrParseInsufficientData, "%d bytes, extended framing needs 6", len(rest))
		}
		switch fv := binary.BigEndian.Uint32(rest[2:6]); fv {
		case VectorE131Sync:
			return parseSyncPacket(cid, rest)
		case VectorE131Discovery:
			return parseDiscoveryPacket(cid, rest)
		default:
			return nil, errParse(ErrPduInvalidVector, "extended framing vector 0x%08x", fv)
		}
	default:
		return nil, errParse(ErrPduInvalidVector, "root vector 0x%08x", vector)
	}
}

// packRoot writes the 38-byte ACN root layer into buf.
func packRoot(buf []byte, vector uint32, cid uuid.UUID) {
	binary.BigEndian.PutUint16(buf[0:2], preambleSize)
	binary.BigEndian.PutUint16(buf[2:4], postambleSize)
	copy(buf[4:16], acnIdentifier[:])
	binary.BigEndian.PutUint16(buf[16:18], flagsLength(len(buf)-16))
	binary.BigEndian.PutUint32(buf[18:22], vector)
	copy(buf[22:38], cid[:])
}
