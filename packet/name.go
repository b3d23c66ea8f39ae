package packet

import (
	"bytes"
	"unicode/utf8"
)

// parseSourceName decodes a 64-byte source name slot. The first NUL
// terminates the name; a slot with no NUL at all is rejected.
func parseSourceName(buf []byte) (string, error) {
	i := bytes.IndexByte(buf, 0)
	if i < 0 {
		return "", errParse(ErrSourceNameInvalid, "source name not null-terminated")
	}
	if !utf8.Valid(buf[:i]) {
		return "", errParse(ErrUTF8, "source name %q", buf[:i])
	}
	return string(buf[:i]), nil
}

// packSourceName writes name into a pre-zeroed 64-byte slot, leaving at
// least one trailing NUL.
func packSourceName(dst []byte, name string) error {
	if len(name) > SourceNameLen-1 {
		return errParse(ErrPackInvalidData, "source name %d bytes, max %d", len(name), SourceNameLen-1)
	}
	copy(dst, name)
	return nil
}
