// internal/oracle/types.go
package oracle

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"token-verification-service/internal/tier"
)

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Key identifies one token-ownership query. Address components are parsed
// into canonical form at construction so key equality is semantic rather
// than textual.
type Key struct {
	Network  string
	Contract common.Address
	Wallet   common.Address
	TokenID  *big.Int
}

// NewKey validates and normalizes the raw components of a verification key.
func NewKey(network, contractAddress, walletAddress string, tokenID int64) (Key, error) {
	if network == "" {
		return Key{}, fmt.Errorf("network must not be empty")
	}
	if !hexAddressRe.MatchString(contractAddress) {
		return Key{}, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	if !hexAddressRe.MatchString(walletAddress) {
		return Key{}, fmt.Errorf("invalid wallet address %q", walletAddress)
	}
	if tokenID < 0 {
		return Key{}, fmt.Errorf("token id must not be negative")
	}
	return Key{
		Network:  network,
		Contract: common.HexToAddress(contractAddress),
		Wallet:   common.HexToAddress(walletAddress),
		TokenID:  big.NewInt(tokenID),
	}, nil
}

// NewTokenKey builds a key for tier-only lookups, where no wallet is part of
// the query.
func NewTokenKey(network, contractAddress string, tokenID int64) (Key, error) {
	if network == "" {
		return Key{}, fmt.Errorf("network must not be empty")
	}
	if !hexAddressRe.MatchString(contractAddress) {
		return Key{}, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	if tokenID < 0 {
		return Key{}, fmt.Errorf("token id must not be negative")
	}
	return Key{
		Network:  network,
		Contract: common.HexToAddress(contractAddress),
		TokenID:  big.NewInt(tokenID),
	}, nil
}

// CacheKey renders the key for the verification cache. Addresses are
// lowercased so textually different spellings of one address share an entry.
func (k Key) CacheKey() string {
	return fmt.Sprintf("token_verify:%s:%s:%s:%s",
		k.Network,
		strings.ToLower(k.Contract.Hex()),
		strings.ToLower(k.Wallet.Hex()),
		k.TokenID.String(),
	)
}

// Result is the outcome of one ownership verification. Tier is nil when the
// wallet does not own the token or the contract exposes no tiering.
type Result struct {
	Valid      bool       `json:"valid"`
	Tier       *tier.Tier `json:"tier"`
	VerifiedAt time.Time  `json:"verified_at"`
}
