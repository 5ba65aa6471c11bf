// Package token defines the engine's token identity type.
package token

import "github.com/ethereum/go-ethereum/common"

// Token is an ERC-20 identity resolved once at populate time. Decimals
// are immutable thereafter; a Token that failed decimal resolution is
// never constructed — its owning pool is dropped during Discovery
// (spec.md §3, "an unresolved token is treated as a populate failure").
type Token struct {
	Address  common.Address
	Decimals uint8
}

// Pow10 returns 10^decimals, used throughout price and swap math to
// normalize between tokens of differing decimals.
func (t Token) Pow10() uint64 {
	p := uint64(1)
	for i := uint8(0); i < t.Decimals; i++ {
		p *= 10
	}
	return p
}

func (t Token) String() string {
	return t.Address.Hex()
}
