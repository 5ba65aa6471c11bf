package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// word returns the 32-byte ABI word at index idx of a log's Data,
// erroring rather than panicking on a truncated payload.
func word(data []byte, idx int) ([]byte, bool) {
	start := idx * 32
	if start+32 > len(data) {
		return nil, false
	}
	return data[start : start+32], true
}

func unsignedFromWord(w []byte) *big.Int {
	return new(big.Int).SetBytes(w)
}

func uint256FromWord(w []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(w)
}

// signedFromWord interprets a 32-byte big-endian word as a two's
// complement signed integer, as ABI encoding represents intN types.
func signedFromWord(w []byte) *big.Int {
	v := new(big.Int).SetBytes(w)
	if len(w) > 0 && w[0]&0x80 != 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), uint(len(w)*8))
		v.Sub(v, modulus)
	}
	return v
}

// int32FromSignedWord narrows a signed word to int32, used for int24
// tick values (ABI-encoded as a full signed 256-bit word).
func int32FromSignedWord(w []byte) int32 {
	return int32(signedFromWord(w).Int64())
}

// addressFromTopic extracts the low 20 bytes of an indexed address topic.
func addressFromTopic(t common.Hash) common.Address {
	var a common.Address
	copy(a[:], t[12:])
	return a
}
