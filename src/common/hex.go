package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeToString returns the uppercase hex form of b with a 0X prefix, the
// format used for public keys in key files and logs.
func EncodeToString(b []byte) string {
	return fmt.Sprintf("0X%X", b)
}

// DecodeFromString reverses EncodeToString. The prefix is optional and its
// case is ignored.
func DecodeFromString(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0X") || strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
