package packet

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulticastAddr(t *testing.T) {
	tests := []struct {
		universe uint16
		want     string
	}{
		{1, "239.255.0.1:5568"},
		{256, "239.255.1.0:5568"},
		{63999, "239.255.249.255:5568"},
		{DiscoveryUniverse, "239.255.250.214:5568"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MulticastAddr(tt.universe).String())
	}

	assert.Equal(t, "239.255.250.214:5568", DiscoveryAddr.String())
}

func TestMulticastAddrIPv6(t *testing.T) {
	addr := MulticastAddrIPv6(1)
	require.Equal(t, Port, addr.Port)
	assert.Equal(t, net.ParseIP("ff18::8300:1").To16(), addr.IP.To16())

	addr = MulticastAddrIPv6(0xfad6)
	assert.Equal(t, net.ParseIP("ff18::8300:fad6").To16(), addr.IP.To16())
}

func TestValidateUniverse(t *testing.T) {
	assert.NoError(t, ValidateUniverse(1))
	assert.NoError(t, ValidateUniverse(63999))

	assert.ErrorIs(t, ValidateUniverse(0), ErrIllegalUniverse)
	assert.ErrorIs(t, ValidateUniverse(64000), ErrIllegalUniverse)
	assert.ErrorIs(t, ValidateUniverse(DiscoveryUniverse), ErrIllegalUniverse)
}

func TestValidateSyncAddr(t *testing.T) {
	assert.NoError(t, ValidateSyncAddr(0))
	assert.NoError(t, ValidateSyncAddr(63999))
	assert.ErrorIs(t, ValidateSyncAddr(64000), ErrIllegalUniverse)
}

func TestFlagsLength(t *testing.T) {
	got, err := parseFlagsLength(flagsLength(0x123))
	require.NoError(t, err)
	assert.Equal(t, 0x123, got)

	_, err = parseFlagsLength(0x0123)
	assert.ErrorIs(t, err, ErrParsePduInvalidFlags)

	_, err = parseFlagsLength(0xf123)
	assert.ErrorIs(t, err, ErrParsePduInvalidFlags)
}
