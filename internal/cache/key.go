package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// checksumToken matches ${checksum:<relative path>} in a cache key template.
var checksumToken = regexp.MustCompile(`\$\{checksum:([^}]+)\}`)

// ResolveKey finalizes a cache key template. Matrix placeholders were
// substituted at expansion time; what remains here are ${checksum:<file>}
// tokens, replaced by the sha-256 hex digest of that file under workdir.
// The resulting key must be fully resolved: any leftover ${...} placeholder
// is an error, since an unresolved key would silently shard the cache.
func ResolveKey(template string, workdir string) (string, error) {
	var tokenErr error
	key := checksumToken.ReplaceAllStringFunc(template, func(token string) string {
		rel := checksumToken.FindStringSubmatch(token)[1]
		digest, err := fileChecksum(filepath.Join(workdir, rel))
		if err != nil {
			tokenErr = fmt.Errorf("resolving %s: %w", token, err)
			return token
		}
		return digest
	})
	if tokenErr != nil {
		return "", tokenErr
	}
	if strings.Contains(key, "${") {
		return "", fmt.Errorf("cache key %q contains unresolved placeholders", key)
	}
	return key, nil
}

func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
