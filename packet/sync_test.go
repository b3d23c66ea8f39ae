package packet

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPacketPackLayout(t *testing.T) {
	p := &SyncPacket{CID: testCID, Sequence: 42, SyncAddr: 7962}
	buf, err := p.Pack()
	require.NoError(t, err)
	require.Len(t, buf, 49)

	assert.Equal(t, uint16(0x7000|33), binary.BigEndian.Uint16(buf[16:18]))
	assert.Equal(t, uint32(VectorRootE131Extended), binary.BigEndian.Uint32(buf[18:22]))
	assert.Equal(t, uint16(0x7000|11), binary.BigEndian.Uint16(buf[38:40]))
	assert.Equal(t, uint32(VectorE131Sync), binary.BigEndian.Uint32(buf[40:44]))
	assert.Equal(t, byte(42), buf[44])
	assert.Equal(t, uint16(7962), binary.BigEndian.Uint16(buf[45:47]))
	// Reserved bytes transmitted as zero
	assert.Equal(t, []byte{0, 0}, buf[47:49])
}

func TestSyncPacketRoundTrip(t *testing.T) {
	tests := []*SyncPacket{
		{CID: testCID, Sequence: 0, SyncAddr: 1},
		{CID: testCID, Sequence: 255, SyncAddr: 63999},
	}

	for _, p := range tests {
		buf, err := p.Pack()
		require.NoError(t, err)

		parsed, err := Parse(buf)
		require.NoError(t, err)
		assert.Equal(t, p, parsed)

		repacked, err := parsed.Pack()
		require.NoError(t, err)
		assert.Equal(t, buf, repacked)
	}
}

func TestSyncPacketParseErrors(t *testing.T) {
	valid, err := (&SyncPacket{CID: testCID, Sequence: 1, SyncAddr: 2}).Pack()
	require.NoError(t, err)

	t.Run("sync address zero", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		binary.BigEndian.PutUint16(buf[45:47], 0)
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrParseInvalidSyncAddr)
	})

	t.Run("sync address out of range", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		binary.BigEndian.PutUint16(buf[45:47], 64000)
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrParseInvalidSyncAddr)
	})

	t.Run("wrong framing length", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		binary.BigEndian.PutUint16(buf[38:40], flagsLength(12))
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrPduInvalidLength)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Parse(valid[:48])
		assert.ErrorIs(t, err, ErrParseInsufficientData)
	})
}

func TestSyncPacketPackErrors(t *testing.T) {
	for _, addr := range []uint16{0, 64000} {
		p := &SyncPacket{CID: testCID, SyncAddr: addr}
		_, err := p.Pack()
		assert.ErrorIs(t, err, ErrPackInvalidData, "sync address %d", addr)
	}
}
