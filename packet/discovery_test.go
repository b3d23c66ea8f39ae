package packet

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDiscoveryPacket() *DiscoveryPacket {
	return &DiscoveryPacket{
		CID:        testCID,
		SourceName: "discovery source",
		Page:       0,
		LastPage:   0,
		Universes:  []uint16{1, 2, 3, 100},
	}
}

func TestDiscoveryPacketPackLayout(t *testing.T) {
	buf, err := testDiscoveryPacket().Pack()
	require.NoError(t, err)
	require.Len(t, buf, 128)

	assert.Equal(t, uint32(VectorRootE131Extended), binary.BigEndian.Uint32(buf[18:22]))
	assert.Equal(t, uint16(0x7000|90), binary.BigEndian.Uint16(buf[38:40]))
	assert.Equal(t, uint32(VectorE131Discovery), binary.BigEndian.Uint32(buf[40:44]))
	// Reserved bytes transmitted as zero
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[108:112])
	assert.Equal(t, uint16(0x7000|16), binary.BigEndian.Uint16(buf[112:114]))
	assert.Equal(t, uint32(VectorUniverseDiscovery), binary.BigEndian.Uint32(buf[114:118]))
	assert.Equal(t, byte(0), buf[118])
	assert.Equal(t, byte(0), buf[119])
	assert.Equal(t, uint16(1), binary.BigEndian.Uint16(buf[120:122]))
	assert.Equal(t, uint16(100), binary.BigEndian.Uint16(buf[126:128]))
}

func TestDiscoveryPacketRoundTrip(t *testing.T) {
	full := make([]uint16, 512)
	for i := range full {
		full[i] = uint16(i + 1)
	}

	tests := []*DiscoveryPacket{
		testDiscoveryPacket(),
		{CID: testCID, SourceName: "empty page", Page: 1, LastPage: 2, Universes: []uint16{}},
		{CID: testCID, SourceName: "full page", Page: 0, LastPage: 1, Universes: full},
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

func TestDiscoveryPacketParseErrors(t *testing.T) {
	valid, err := testDiscoveryPacket().Pack()
	require.NoError(t, err)

	t.Run("page past last page", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		buf[118] = 1
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrParseInvalidPage)
	})

	t.Run("universes not ascending", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		binary.BigEndian.PutUint16(buf[122:124], 1)
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrParseInvalidUniverseOrder)
	})

	t.Run("duplicate universe", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		binary.BigEndian.PutUint16(buf[122:124], 1)
		binary.BigEndian.PutUint16(buf[120:122], 1)
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrParseInvalidUniverseOrder)
	})

	t.Run("list vector", func(t *testing.T) {
		buf := append([]byte(nil), valid...)
		binary.BigEndian.PutUint32(buf[114:118], 0x00000002)
		_, err := Parse(buf)
		assert.ErrorIs(t, err, ErrPduInvalidVector)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := Parse(valid[:119])
		assert.ErrorIs(t, err, ErrParseInsufficientData)
	})
}

func TestDiscoveryPacketPackErrors(t *testing.T) {
	t.Run("too many universes", func(t *testing.T) {
		p := testDiscoveryPacket()
		p.Universes = make([]uint16, 513)
		for i := range p.Universes {
			p.Universes[i] = uint16(i + 1)
		}
		_, err := p.Pack()
		assert.ErrorIs(t, err, ErrPackInvalidData)
	})

	t.Run("not ascending", func(t *testing.T) {
		p := testDiscoveryPacket()
		p.Universes = []uint16{3, 2}
		_, err := p.Pack()
		assert.ErrorIs(t, err, ErrPackInvalidData)
	})

	t.Run("page past last page", func(t *testing.T) {
		p := testDiscoveryPacket()
		p.Page = 2
		p.LastPage = 1
		_, err := p.Pack()
		assert.ErrorIs(t, err, ErrPackInvalidData)
	})
}
