package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"

	fileMode = 0600
)

// ParseFormat normalizes an output format name. "yml" is accepted as YAML.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want json or yaml)", s)
	}
}

// Marshal encodes the artifact in format: JSON with two-space indentation
// or YAML.
func (a *Artifact) Marshal(format string) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	if f == FormatYAML {
		var buf bytes.Buffer
		e := yaml.NewEncoder(&buf)
		e.SetIndent(2)
		if err := e.Encode(a); err != nil {
			return nil, fmt.Errorf("error encoding artifact: %w", err)
		}
		if err := e.Close(); err != nil {
			return nil, fmt.Errorf("error encoding artifact: %w", err)
		}
		return buf.Bytes(), nil
	}

	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding artifact: %w", err)
	}
	return append(b, '\n'), nil
}

// Encode writes the artifact to w. The whole document is encoded before
// anything is written.
func (a *Artifact) Encode(w io.Writer, format string) error {
	b, err := a.Marshal(format)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("error writing artifact: %w", err)
	}
	return nil
}

// Digest returns the hex SHA-256 of the compact JSON encoding. Artifacts
// with identical parameters have identical digests.
func (a *Artifact) Digest() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("error encoding artifact: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Decode reads and validates an artifact. JSON and YAML are both accepted.
func Decode(r io.Reader) (*Artifact, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading artifact: %w", err)
	}

	var a Artifact
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, &a)
	} else {
		err = yaml.Unmarshal(trimmed, &a)
	}
	if err != nil {
		return nil, fmt.Errorf("error decoding artifact: %w", err)
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Load reads and validates the artifact stored at path.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening artifact %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile writes the artifact to path through a temporary file in the
// same directory, so a failed write never leaves a partial artifact behind.
func (a *Artifact) WriteFile(path, format string) (retErr error) {
	b, err := a.Marshal(format)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer func() {
		if retErr != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing artifact: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("error setting artifact mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error moving artifact into place: %w", err)
	}
	return nil
}
