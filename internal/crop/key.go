package crop

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Key identifies one rendered crop. Two keys are equal exactly when the
// rendered pixels would be, so it doubles as the cache lookup key across
// both tiers.
type Key struct {
	ImagePath   string
	DetectionID string
	Size        int
	Padding     float64
}

// String renders the key in a stable human-readable form.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%d|%.4f", k.ImagePath, k.DetectionID, k.Size, k.Padding)
}

// Digest returns the hex SHA-1 of the key, used as the on-disk file name.
func (k Key) Digest() string {
	sum := sha1.Sum([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}
