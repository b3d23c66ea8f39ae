package packet

import (
	"errors"
	"fmt"
)

// Parse and pack errors. Callers should match with errors.Is; every parse
// failure wraps exactly one of these sentinels with positional context.
var (
	ErrParseInvalidData          = errors.New("invalid packet data")
	ErrParseInsufficientData     = errors.New("insufficient packet data")
	ErrParseInvalidPriority      = errors.New("invalid priority")
	ErrParseInvalidSyncAddr      = errors.New("invalid synchronization address")
	ErrParseInvalidUniverse      = errors.New("invalid universe")
	ErrParseInvalidUniverseOrder = errors.New("universe list not strictly ascending")
	ErrParseInvalidPage          = errors.New("invalid discovery page")
	ErrParsePduInvalidFlags      = errors.New("invalid pdu flags")
	ErrPduInvalidLength          = errors.New("invalid pdu length")
	ErrPduInvalidVector          = errors.New("invalid pdu vector")
	ErrSourceNameInvalid         = errors.New("invalid source name")
	ErrPackInvalidData           = errors.New("invalid pack data")
	ErrPackBufferInsufficient    = errors.New("pack buffer insufficient")
	ErrUUID                      = errors.New("invalid cid")
	ErrUTF8                      = errors.New("invalid utf-8")
)

// ErrIllegalUniverse marks a universe outside [MinUniverse, MaxUniverse].
var ErrIllegalUniverse = errors.New("illegal universe")

func illegalUniverse(u uint16) error {
	return fmt.Errorf("universe %d outside [%d, %d]: %w", u, MinUniverse, MaxUniverse, ErrIllegalUniverse)
}

func errParse(kind error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, kind)...)
}
