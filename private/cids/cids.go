// Package cids verifies that downloaded data matches its content address.
package cids

import (
	"fmt"

	"github.com/ipfs/go-cid"
)

// VerifyRaw decodes provided and checks it against data.
func VerifyRaw(provided string, data []byte) error {
	c, err := cid.Decode(provided)
	if err != nil {
		return fmt.Errorf("failed to decode provided CID: %w", err)
	}
	return Verify(c, data)
}

// Verify recomputes the CID of data using c's version, codec and multihash
// function and fails when the result differs from c.
func Verify(c cid.Cid, data []byte) error {
	prefix := c.Prefix()
	switch prefix.Version {
	case 0, 1:
	default:
		return fmt.Errorf("unsupported CID version: %d", prefix.Version)
	}

	calculated, err := prefix.Sum(data)
	if err != nil {
		return fmt.Errorf("failed to create multihash: %w", err)
	}

	if !calculated.Equals(c) {
		return fmt.Errorf("CID mismatch: provided %s, calculated %s", c, calculated)
	}
	return nil
}
