package peerauth

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadSigningKey reads the active HMAC signing key from keysPath, the
// KEYS_PATH directory named in spec.md §6. The key file is expected to hold
// a single base64-url-encoded 32-byte secret, the same encoding convention
// the teacher's cookie-secret loader uses for its own symmetric keys.
func LoadSigningKey(keysPath string) ([]byte, error) {
	var path = filepath.Join(keysPath, "jwt-signing.key")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key %s: %w", path, err)
	}

	var encoded = strings.TrimSpace(string(raw))
	key, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("signing key is not base64-url encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("signing key must be exactly 32 bytes, got %d", len(key))
	}
	return key, nil
}
