package pdfdoc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Info is what the pipeline learns about an upload before any model call.
type Info struct {
	Hash      string
	PageCount int
}

// Inspect hashes the upload and reads its page count with relaxed validation.
// The hash is always set; a non-nil error only means the page count is unknown.
// pdfcpu can panic on malformed cross-reference data, so panics are returned
// as errors.
func Inspect(data []byte) (info Info, err error) {
	info = Info{Hash: Hash(data)}
	defer func() {
		if r := recover(); r != nil {
			info.PageCount = 0
			err = fmt.Errorf("pdfcpu panicked while reading page count: %v", r)
		}
	}()

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	pageCount, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return info, fmt.Errorf("failed to read page count: %w", err)
	}
	info.PageCount = pageCount
	return info, nil
}

// Hash returns the hex SHA-256 of the document bytes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
