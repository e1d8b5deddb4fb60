// Package trackjson renders a decoded track as canonical JSON. Two decodes of
// the same archive produce byte-identical output and therefore the same
// digest.
package trackjson

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"
	"github.com/kaptinlin/jsonschema"

	"github.com/saviobatista/trackrescue/internal/types"
)

//go:embed track.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Encode returns the RFC 8785 canonical form of the track
func Encode(track *types.Track) ([]byte, error) {
	raw, err := json.Marshal(track)
	if err != nil {
		return nil, fmt.Errorf("marshal track: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize track: %w", err)
	}
	return canonical, nil
}

// Digest returns the sha256 hex digest of the canonical track
func Digest(track *types.Track) (string, error) {
	canonical, err := Encode(track)
	if err != nil {
		return "", err
	}
	return DigestBytes(canonical), nil
}

// DigestBytes hashes already canonical bytes
func DigestBytes(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Validate checks encoded track JSON against the embedded schema
func Validate(data []byte) error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		schema, schemaErr = compiler.Compile(schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile schema: %w", schemaErr)
	}

	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("schema validation failed: %v", result.Errors)
}
