package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
)

// Key is an account key. Actors are identified by the checksummed hex
// address of its public key.
type Key struct {
	privateKey *ecdsa.PrivateKey
}

func GenerateKey() (*Key, error) {
	priv, err := eth_crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func KeyFromHex(s string) (*Key, error) {
	priv, err := eth_crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func LoadKeyFile(keyFilePath string) (*Key, error) {
	dat, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	k, err := KeyFromHex(string(dat))
	if err != nil {
		return nil, fmt.Errorf("error reading account key from %v: %w", keyFilePath, err)
	}
	return k, nil
}

func (k *Key) Save(keyFilePath string) error {
	if err := os.MkdirAll(filepath.Dir(keyFilePath), 0o700); err != nil {
		return err
	}
	d := eth_crypto.FromECDSA(k.privateKey)
	return os.WriteFile(keyFilePath, []byte(hex.EncodeToString(d)), 0o600)
}

func (k *Key) Address() string {
	return eth_crypto.PubkeyToAddress(k.privateKey.PublicKey).Hex()
}

func (k *Key) PublicKey() []byte {
	return eth_crypto.FromECDSAPub(&k.privateKey.PublicKey)
}

// Sign signs keccak256(data) and returns a 65 byte [R || S || V] signature.
func (k *Key) Sign(data []byte) ([]byte, error) {
	return eth_crypto.Sign(eth_crypto.Keccak256(data), k.privateKey)
}

// RecoverAddress returns the address that produced sig over data.
func RecoverAddress(data []byte, sig []byte) (string, error) {
	if len(sig) != eth_crypto.SignatureLength {
		return "", ErrInvalidSignature
	}
	pub, err := eth_crypto.SigToPub(eth_crypto.Keccak256(data), sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return eth_crypto.PubkeyToAddress(*pub).Hex(), nil
}
