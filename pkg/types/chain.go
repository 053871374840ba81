package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ChainFamily groups chains that share an address format and signer
type ChainFamily string

const (
	FamilyEVM     ChainFamily = "evm"
	FamilyBitcoin ChainFamily = "bitcoin"
	FamilyNear    ChainFamily = "near"
	FamilySolana  ChainFamily = "solana"
)

// ChainID identifies a chain: either a numeric EVM chain or one of the
// non-EVM families. The zero value is invalid.
type ChainID struct {
	family ChainFamily
	evm    uint64
}

var (
	Bitcoin = ChainID{family: FamilyBitcoin}
	Near    = ChainID{family: FamilyNear}
	Solana  = ChainID{family: FamilySolana}
)

// Well-known EVM chains
var (
	Ethereum  = EVMChain(1)
	Optimism  = EVMChain(10)
	BSC       = EVMChain(56)
	Polygon   = EVMChain(137)
	Base      = EVMChain(8453)
	Arbitrum  = EVMChain(42161)
	Avalanche = EVMChain(43114)
)

var chainAliases = map[string]ChainID{
	"eth":       Ethereum,
	"ethereum":  Ethereum,
	"mainnet":   Ethereum,
	"op":        Optimism,
	"optimism":  Optimism,
	"bsc":       BSC,
	"bnb":       BSC,
	"polygon":   Polygon,
	"matic":     Polygon,
	"pol":       Polygon,
	"base":      Base,
	"arb":       Arbitrum,
	"arbitrum":  Arbitrum,
	"avax":      Avalanche,
	"avalanche": Avalanche,
	"btc":       Bitcoin,
	"bitcoin":   Bitcoin,
	"near":      Near,
	"sol":       Solana,
	"solana":    Solana,
}

// EVMChain returns the ChainID of a numeric EVM chain
func EVMChain(id uint64) ChainID {
	return ChainID{family: FamilyEVM, evm: id}
}

// ParseChainID parses a numeric EVM chain id, a family name or an alias
func ParseChainID(s string) (ChainID, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ChainID{}, fmt.Errorf("empty chain")
	}

	if id, err := strconv.ParseUint(s, 10, 64); err == nil {
		if id == 0 {
			return ChainID{}, fmt.Errorf("invalid chain id 0")
		}
		return EVMChain(id), nil
	}

	if chain, ok := chainAliases[s]; ok {
		return chain, nil
	}

	return ChainID{}, fmt.Errorf("unknown chain '%s'", s)
}

// Family returns the chain family
func (c ChainID) Family() ChainFamily {
	return c.family
}

// IsEVM reports whether c is an EVM chain
func (c ChainID) IsEVM() bool {
	return c.family == FamilyEVM
}

// EVMID returns the numeric chain id, or 0 for non-EVM chains
func (c ChainID) EVMID() uint64 {
	return c.evm
}

// IsZero reports whether c is unset
func (c ChainID) IsZero() bool {
	return c.family == ""
}

func (c ChainID) String() string {
	if c.family == FamilyEVM {
		return strconv.FormatUint(c.evm, 10)
	}
	return string(c.family)
}

// MarshalText implements encoding.TextMarshaler
func (c ChainID) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return nil, fmt.Errorf("cannot marshal empty chain")
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *ChainID) UnmarshalText(text []byte) error {
	parsed, err := ParseChainID(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
