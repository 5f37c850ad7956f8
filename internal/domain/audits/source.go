package audits

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultName is used when code arrives without a filename (pasted input).
const DefaultName = "contract.sol"

// ContractSource is the uploaded contract held in memory for one session.
// Immutable; discarded after the session — only the derived report persists.
type ContractSource struct {
	Name    string
	Content string
	Size    int64
	Hash    string // first 12 hex chars of sha256, dipakai sebagai identitas kode
}

// LoadSource validates raw upload bytes into a ContractSource.
// maxBytes <= 0 disables the size bound.
func LoadSource(filename string, data []byte, maxBytes int64) (*ContractSource, error) {
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyInput
	}
	if filename == "" {
		filename = DefaultName
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".sol" {
		return nil, fmt.Errorf("%w: %s (expected .sol)", ErrUnsupportedFile, ext)
	}
	size := int64(len(data))
	if maxBytes > 0 && size > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, size, maxBytes)
	}
	return &ContractSource{
		Name:    filepath.Base(filename),
		Content: content,
		Size:    size,
		Hash:    CodeHash(content),
	}, nil
}

// CodeHash returns the short identity hash of contract code.
func CodeHash(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])[:12]
}
