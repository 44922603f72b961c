package common

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// ShortID returns a prefixed 12-hex-char identifier, e.g. "ds-1f0c9a2b3d4e".
// Record ids stay compatible with the original on-disk document shapes.
func ShortID(prefix string) string {
	id := uuid.New()
	return prefix + "-" + hex.EncodeToString(id[:])[:12]
}
