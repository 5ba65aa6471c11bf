package factory

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// word and addressFromTopic are unexported copies of the amm package's
// helpers of the same names, which amm does not export; int32FromWord
// and uint32FromWord are factory's own decoders for creation-log
// fields (pair/pool/vault addresses buried in data words or topics).
func word(data []byte, idx int) ([]byte, bool) {
	start := idx * 32
	if start+32 > len(data) {
		return nil, false
	}
	return data[start : start+32], true
}

func addressFromTopic(t common.Hash) common.Address {
	var a common.Address
	copy(a[:], t[12:])
	return a
}

func int32FromWord(w []byte) int32 {
	v := new(big.Int).SetBytes(w)
	if len(w) > 0 && w[0]&0x80 != 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), uint(len(w)*8))
		v.Sub(v, modulus)
	}
	return int32(v.Int64())
}

func uint32FromWord(w []byte) uint32 {
	return uint32(new(big.Int).SetBytes(w).Uint64())
}
