// Package pdp computes Filecoin piece commitments and carries the
// environment plumbing for proof-of-data-possession integration tests.
package pdp

import (
	"fmt"
	"os"
	"strings"
	"testing"

	commcid "github.com/filecoin-project/go-fil-commcid"
	commp "github.com/filecoin-project/go-fil-commp-hashhash"
	"github.com/ipfs/go-cid"
)

// Calibration network defaults.
const (
	CalibrationWarmStorageContract = "0x02925630df557F957f70E112bA06e50965417CA0"
	CalibrationFilecoinRPC         = "https://api.calibration.node.glif.io/rpc/v1"
)

// TestConfig holds the environment-provided settings PDP tests run against.
type TestConfig struct {
	PrivateKey string
	ServerURL  string
}

// TestConfigFromEnv reads PDP_PRIVATE_KEY and PDP_SERVER_URL. A private key
// of "omit" counts as unset.
func TestConfigFromEnv() TestConfig {
	key := os.Getenv("PDP_PRIVATE_KEY")
	if strings.EqualFold(key, "omit") {
		key = ""
	}
	return TestConfig{
		PrivateKey: key,
		ServerURL:  os.Getenv("PDP_SERVER_URL"),
	}
}

// PickPrivateKey returns the deployer private key or skips the test when the
// environment does not provide one.
func (c TestConfig) PickPrivateKey(t testing.TB) string {
	if c.PrivateKey == "" {
		t.Skip("private key flag missing, example: -PDP_PRIVATE_KEY=<deployers hex private key>")
	}
	return c.PrivateKey
}

// PickServerURL returns the PDP server URL or skips the test when the
// environment does not provide one.
func (c TestConfig) PickServerURL(t testing.TB) string {
	if c.ServerURL == "" {
		t.Skip("PDP server URL flag missing, example: -pdp-server-url=<pdp server url>")
	}
	return c.ServerURL
}

// CalculatePieceCID computes the piece CID (CommP) of a payload.
func CalculatePieceCID(data []byte) (cid.Cid, error) {
	cp := new(commp.Calc)
	if _, err := cp.Write(data); err != nil {
		return cid.Undef, fmt.Errorf("failed to hash payload: %w", err)
	}
	rawCommP, _, err := cp.Digest()
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to compute piece commitment: %w", err)
	}

	pieceCid, err := commcid.DataCommitmentToPieceCidv2(rawCommP, uint64(len(data)))
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to build piece CID: %w", err)
	}
	return pieceCid, nil
}
