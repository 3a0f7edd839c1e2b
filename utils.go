package youbuidl

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NormalizeAddress validates a hex account address and returns its canonical
// lowercase form. Every address stored or compared anywhere in the system
// goes through this first.
func NormalizeAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid address: %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// IsAddress reports whether s looks like a hex account address.
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}

// EntityChannel is the pub/sub channel carrying change events for one entity.
func EntityChannel(entityID string) string {
	return "interactions:" + entityID
}

// PersonalSignHash computes the EIP-191 personal-sign digest of message.
func PersonalSignHash(message []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return crypto.Keccak256([]byte(prefix), message)
}

// AuthMessage is the challenge a viewer signs to authenticate a request
// issued at unix time ts.
func AuthMessage(ts int64) []byte {
	return []byte(fmt.Sprintf("youbuidl-auth:%d", ts))
}
