package client

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	youbuidl "github.com/givestation/youbuidl-sync"
)

// Signer produces EIP-191 personal-sign signatures for the viewer's account.
// Wallet integrations implement this; LocalSigner covers bots and tests.
type Signer interface {
	Address() string
	Sign(message []byte) ([]byte, error)
}

// LocalSigner signs with an in-memory private key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address string
}

func NewLocalSigner(hexkey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexkey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}
	addr := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
	return &LocalSigner{key: key, address: addr}, nil
}

func (s *LocalSigner) Address() string {
	return s.address
}

func (s *LocalSigner) Sign(message []byte) ([]byte, error) {
	return crypto.Sign(youbuidl.PersonalSignHash(message), s.key)
}
