// Package fingerprint derives path-independent cache keys from file contents.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// keyVersion is bumped whenever the inputs to Key change meaning, which
// orphans every previously cached entry.
const keyVersion = "v1"

// ExtendedShapes is the analyzer's extended shape set code.
const ExtendedShapes = "GHX"

// File returns the hex SHA-256 of the file contents at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ShapeSet is the extended shape code requested from the analyzer.
func ShapeSet(skipExtended bool) string {
	if skipExtended {
		return ""
	}
	return ExtendedShapes
}

// Key combines everything the analyzer output depends on: audio content,
// transcript content and requested shape set. The image set is left out since
// cues do not depend on it.
func Key(audioHash, transcriptHash string, skipExtended bool) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", keyVersion, audioHash, transcriptHash, ShapeSet(skipExtended))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

type Fingerprint struct {
	Audio      string
	Transcript string
	Key        string
}

// Compute hashes both input files and derives the cache key.
func Compute(speechPath, transcriptPath string, skipExtended bool) (Fingerprint, error) {
	audio, err := File(speechPath)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint speech: %w", err)
	}
	tr, err := File(transcriptPath)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint transcript: %w", err)
	}
	return Fingerprint{
		Audio:      audio,
		Transcript: tr,
		Key:        Key(audio, tr, skipExtended),
	}, nil
}
