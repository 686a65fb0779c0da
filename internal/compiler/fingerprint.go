// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package compiler

import (
	"encoding/binary"
	"encoding/hex"

	"malloy/cli/internal/bridge/compilerpb"
	"malloy/cli/internal/bridge/model"

	"github.com/spaolacci/murmur3"
)

// Fingerprint identifies a compiler response by content.
type Fingerprint [16]byte

// FingerprintOf hashes the deterministic wire encoding of resp, so equal
// responses always share a fingerprint.
func FingerprintOf(resp model.Response) (Fingerprint, error) {
	b, err := compilerpb.MarshalResponse(resp)
	if err != nil {
		return Fingerprint{}, err
	}
	h1, h2 := murmur3.Sum128(b)
	var fp Fingerprint
	binary.BigEndian.PutUint64(fp[:8], h1)
	binary.BigEndian.PutUint64(fp[8:], h2)
	return fp, nil
}

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }
