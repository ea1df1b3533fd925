package crypto

import (
	"crypto/sha256"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SHA256 returns the SHA256 hash of the data.
func SHA256(data []byte) []byte {
	hasher := sha256.New()
	hasher.Write(data)
	hash := hasher.Sum(nil)
	return hash
}

// SimpleHashFromTwoHashes returns the SHA256 hash of the concatenation of left
// and right data. The application state hash is chained with it, one
// transaction at a time.
func SimpleHashFromTwoHashes(left []byte, right []byte) []byte {
	var hasher = sha256.New()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

// Keccak256 returns the Keccak-256 hash of the concatenated data, the hash
// function used to derive addresses and oracle index seeds.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}
