// Package buildinfo carries version metadata stamped at link time:
//
//	-X 'github.com/Diamond001cloud/webhook-ape-airdrop1/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/Diamond001cloud/webhook-ape-airdrop1/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/Diamond001cloud/webhook-ape-airdrop1/core/buildinfo.Date=2025-10-01T12:00:00Z'
package buildinfo

var (
	// Version reports the release tag of the binary.
	Version = "dev"
	// Commit reports the source revision the binary was built from.
	Commit = "local"
	// Date reports the RFC3339 build timestamp.
	Date = ""
)
