package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKey_PlainTemplate(t *testing.T) {
	key, err := ResolveKey("cargo-default", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "cargo-default", key)
}

func TestResolveKey_ChecksumToken(t *testing.T) {
	workdir := t.TempDir()
	lockfile := []byte("[[package]]\nname = \"serde\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(workdir, "Cargo.lock"), lockfile, 0o644))

	sum := sha256.Sum256(lockfile)
	want := "cargo-" + hex.EncodeToString(sum[:])

	key, err := ResolveKey("cargo-${checksum:Cargo.lock}", workdir)
	require.NoError(t, err)
	assert.Equal(t, want, key)
}

func TestResolveKey_MissingChecksumFile(t *testing.T) {
	_, err := ResolveKey("cargo-${checksum:Cargo.lock}", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cargo.lock")
}

func TestResolveKey_RejectsUnresolvedPlaceholders(t *testing.T) {
	// A matrix placeholder that survived expansion would silently shard the
	// cache, so the resolver refuses it.
	_, err := ResolveKey("cargo-${matrix.feature}", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved")
}
