package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for row content hashes. The version suffix changes whenever
// the row layout does.
const DomainRow = "hotspot/row/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RowHash returns a content hash of a row of cells in the given sheet.
// Two rows hash equal exactly when their canonical encodings are equal.
func RowHash(kind EntityKind, cells []any) (string, error) {
	canonical, err := MarshalCanonical(cells)
	if err != nil {
		return "", fmt.Errorf("RowHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRow+"/"+string(kind), canonical), nil
}
