package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DateLayout is the string encoding used for Artifact.DateCreated.
const DateLayout = time.RFC3339Nano

// Artifact represents a byte-addressable output produced by a task,
// typically a file.
//
// Equality is structural over all three attributes. Two artifacts are equal
// for reuse purposes when their recorded metadata matches; the underlying
// bytes are not re-verified.
type Artifact struct {
	// Location is a path-like identifier for the produced output.
	Location string `json:"location"`

	// DateCreated is the creation timestamp, encoded with DateLayout.
	DateCreated string `json:"date_created"`

	// Hash is an optional content fingerprint. It is computed lazily and
	// never replaced once set.
	Hash string `json:"hash,omitempty"`
}

// NewArtifact records an artifact without a content fingerprint.
func NewArtifact(location string, created time.Time) Artifact {
	return Artifact{Location: location, DateCreated: created.UTC().Format(DateLayout)}
}

// NewFileArtifact records the file at path, using its modification time as
// the creation timestamp. The content hash is not computed here; call
// WithContentHash when the fingerprint is needed.
func NewFileArtifact(path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat artifact: %w", err)
	}
	if info.IsDir() {
		return Artifact{}, fmt.Errorf("artifact %q is a directory", path)
	}
	return NewArtifact(filepath.ToSlash(path), info.ModTime()), nil
}

// WithContentHash returns a copy of a carrying the SHA-1 digest of the file
// at its location. An artifact that already has a hash is returned unchanged.
func (a Artifact) WithContentHash() (Artifact, error) {
	if a.Hash != "" {
		return a, nil
	}
	sum, err := HashFile(filepath.FromSlash(a.Location))
	if err != nil {
		return Artifact{}, err
	}
	a.Hash = sum
	return a, nil
}

// Validate checks that a can be persisted: the location is set and the hash,
// when present, is a lowercase hex SHA-1 digest.
func (a Artifact) Validate() error {
	if a.Location == "" {
		return errors.New("location is required")
	}
	if a.Hash != "" && !isSHA1Hex(a.Hash) {
		return fmt.Errorf("hash %q is not a lowercase hex SHA-1 digest", a.Hash)
	}
	return nil
}

func isSHA1Hex(s string) bool {
	if len(s) != 40 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Equal compares location, creation date and hash.
func (a Artifact) Equal(other Artifact) bool {
	return a.Location == other.Location &&
		a.DateCreated == other.DateCreated &&
		a.Hash == other.Hash
}
