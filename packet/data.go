package packet

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// DataPacket is an E1.31 data PDU: one universe's worth of DMX property
// values plus arbitration metadata.
type DataPacket struct {
	CID        uuid.UUID
	SourceName string
	Priority   uint8
	SyncAddr   uint16
	Sequence   uint8
	Preview    bool
	Terminated bool
	ForceSync  bool
	Universe   uint16

	// Data holds the START code followed by up to 512 slots.
	Data []byte
}

func (*DataPacket) packet() {}

// parseDataPacket decodes the data framing layer and DMP sub-layer. buf
// starts at the framing layer flags+length field.
func parseDataPacket(cid uuid.UUID, buf []byte) (*DataPacket, error) {
	if len(buf) < dataFramingSize+dmpHeaderSize {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, data framing needs %d", len(buf), dataFramingSize+dmpHeaderSize)
	}

	// Flags and Length (2 bytes) - must cover the rest of the packet
	framingLen, err := parseFlagsLength(binary.BigEndian.Uint16(buf[0:2]))
	if err != nil {
		return nil, err
	}
	if framingLen > len(buf) {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, data framing declares %d", len(buf), framingLen)
	}
	if framingLen != len(buf) {
		return nil, errParse(ErrPduInvalidLength, "data framing length %d, %d bytes remain", framingLen, len(buf))
	}

	// Vector (4 bytes)
	if v := binary.BigEndian.Uint32(buf[2:6]); v != VectorE131DataPacket {
		return nil, errParse(ErrPduInvalidVector, "data framing vector 0x%08x", v)
	}

	// Source Name (64 bytes)
	name, err := parseSourceName(buf[6:70])
	if err != nil {
		return nil, err
	}

	// Priority (1 byte)
	priority := buf[70]
	if priority > MaxPriority {
		return nil, errParse(ErrParseInvalidPriority, "priority %d", priority)
	}

	// Synchronization Address (2 bytes) - zero means unsynchronized
	syncAddr := binary.BigEndian.Uint16(buf[71:73])
	if syncAddr != 0 && !ValidUniverse(syncAddr) {
		return nil, errParse(ErrParseInvalidSyncAddr, "synchronization address %d", syncAddr)
	}

	// Sequence Number (1 byte), Options (1 byte)
	sequence := buf[73]
	options := buf[74]

	// Universe (2 bytes)
	universe := binary.BigEndian.Uint16(buf[75:77])
	if !ValidUniverse(universe) {
		return nil, errParse(ErrParseInvalidUniverse, "universe %d", universe)
	}

	data, err := parseDMP(buf[dataFramingSize:])
	if err != nil {
		return nil, err
	}

	return &DataPacket{
		CID:        cid,
		SourceName: name,
		Priority:   priority,
		SyncAddr:   syncAddr,
		Sequence:   sequence,
		Preview:    options&optionPreview != 0,
		Terminated: options&optionTerminated != 0,
		ForceSync:  options&optionForceSync != 0,
		Universe:   universe,
		Data:       data,
	}, nil
}

// parseDMP decodes the DMP set-property sub-layer. buf starts at the DMP
// flags+length field and must be covered exactly by the declared length.
func parseDMP(buf []byte) ([]byte, error) {
	dmpLen, err := parseFlagsLength(binary.BigEndian.Uint16(buf[0:2]))
	if err != nil {
		return nil, err
	}
	if dmpLen > len(buf) {
		return nil, errParse(ErrParseInsufficientData, "%d bytes, dmp pdu declares %d", len(buf), dmpLen)
	}
	if dmpLen != len(buf) {
		return nil, errParse(ErrPduInvalidLength, "dmp length %d, %d bytes remain", dmpLen, len(buf))
	}

	// Vector (1 byte)
	if buf[2] != VectorDMPSetProperty {
		return nil, errParse(ErrParseInvalidData, "dmp vector 0x%02x", buf[2])
	}
	// Address Type & Data Type (1 byte)
	if buf[3] != dmpAddressType {
		return nil, errParse(ErrParseInvalidData, "dmp address type 0x%02x", buf[3])
	}
	// First Property Address (2 bytes)
	if v := binary.BigEndian.Uint16(buf[4:6]); v != dmpFirstPropertyAddr {
		return nil, errParse(ErrParseInvalidData, "dmp first property address 0x%04x", v)
	}
	// Address Increment (2 bytes)
	if v := binary.BigEndian.Uint16(buf[6:8]); v != dmpAddressIncrement {
		return nil, errParse(ErrParseInvalidData, "dmp address increment 0x%04x", v)
	}

	// Property Value Count (2 bytes) - START code plus slots
	count := int(binary.BigEndian.Uint16(buf[8:10]))
	if count > UniverseChannelCapacity {
		return nil, errParse(ErrParseInvalidData, "dmp property count %d, max %d", count, UniverseChannelCapacity)
	}
	if count != dmpLen-dmpHeaderSize {
		return nil, errParse(ErrParseInvalidData, "dmp property count %d, %d value bytes", count, dmpLen-dmpHeaderSize)
	}

	data := make([]byte, count)
	copy(data, buf[dmpHeaderSize:])
	return data, nil
}

// Pack serializes the data packet, root layer included.
func (p *DataPacket) Pack() ([]byte, error) {
	if err := ValidateUniverse(p.Universe); err != nil {
		return nil, errParse(ErrPackInvalidData, "data packet universe %d", p.Universe)
	}
	if p.SyncAddr != 0 && !ValidUniverse(p.SyncAddr) {
		return nil, errParse(ErrPackInvalidData, "data packet synchronization address %d", p.SyncAddr)
	}
	if p.Priority > MaxPriority {
		return nil, errParse(ErrPackInvalidData, "data packet priority %d", p.Priority)
	}
	if len(p.Data) > UniverseChannelCapacity {
		return nil, errParse(ErrPackInvalidData, "data packet %d property bytes, max %d", len(p.Data), UniverseChannelCapacity)
	}

	buf := make([]byte, dataHeaderSize+len(p.Data))

	// Root Layer (38 bytes)
	packRoot(buf, VectorRootE131Data, p.CID)

	// Framing Layer (77 bytes, starting at offset 38)
	binary.BigEndian.PutUint16(buf[38:40], flagsLength(len(buf)-38))
	binary.BigEndian.PutUint32(buf[40:44], VectorE131DataPacket)
	if err := packSourceName(buf[44:108], p.SourceName); err != nil {
		return nil, err
	}
	buf[108] = p.Priority
	binary.BigEndian.PutUint16(buf[109:111], p.SyncAddr)
	buf[111] = p.Sequence
	var options byte
	if p.Preview {
		options |= optionPreview
	}
	if p.Terminated {
		options |= optionTerminated
	}
	if p.ForceSync {
		options |= optionForceSync
	}
	buf[112] = options
	binary.BigEndian.PutUint16(buf[113:115], p.Universe)

	// DMP Layer (10 + len(Data) bytes, starting at offset 115)
	binary.BigEndian.PutUint16(buf[115:117], flagsLength(len(buf)-115))
	buf[117] = VectorDMPSetProperty
	buf[118] = dmpAddressType
	binary.BigEndian.PutUint16(buf[119:121], dmpFirstPropertyAddr)
	binary.BigEndian.PutUint16(buf[121:123], dmpAddressIncrement)
	binary.BigEndian.PutUint16(buf[123:125], uint16(len(p.Data)))
	copy(buf[125:], p.Data)

	return buf, nil
}
