// Package txparser derives presentation attributes from raw transactions:
// the transaction kind and simple input/output statistics. Everything here is
// pure and performs no I/O.
package txparser

import (
	"fmt"
	"strings"

	"github.com/zecdev/chainfeed/pkg/types"
)

// Kind is the derived transaction subtype.
type Kind string

const (
	KindCoinbase Kind = "coinbase"
	KindTZE      Kind = "tze"
	KindStandard Kind = "standard"
)

// TZEPrefix is the reserved extension-type prefix byte, hex encoded, that marks
// a script payload as a transparent extension.
const TZEPrefix = "ff"

// Classify returns the kind of tx. Inputs are evaluated before outputs and the
// first match wins, so a coinbase-marked first input beats any TZE script.
func Classify(tx *types.Transaction) Kind {
	if tx == nil {
		return KindStandard
	}
	if len(tx.Vin) > 0 && tx.Vin[0].IsCoinbase() {
		return KindCoinbase
	}
	for _, in := range tx.Vin {
		if in.ScriptSig != nil && isTZEScript(in.ScriptSig.Hex) {
			return KindTZE
		}
	}
	for _, out := range tx.Vout {
		if isTZEScript(out.ScriptPubKey.Hex) {
			return KindTZE
		}
	}
	return KindStandard
}

func isTZEScript(hex string) bool {
	return len(hex) >= len(TZEPrefix) && strings.EqualFold(hex[:len(TZEPrefix)], TZEPrefix)
}

// Stats holds counts and totals shown alongside a transaction.
type Stats struct {
	Inputs      int     `json:"inputs"`
	Outputs     int     `json:"outputs"`
	TotalOutput float64 `json:"totalOutput"`
}

// ComputeStats counts inputs and outputs and sums output values. A missing
// value contributes 0.
func ComputeStats(tx *types.Transaction) Stats {
	if tx == nil {
		return Stats{}
	}
	s := Stats{
		Inputs:  len(tx.Vin),
		Outputs: len(tx.Vout),
	}
	for _, out := range tx.Vout {
		if out.Value != nil {
			s.TotalOutput += *out.Value
		}
	}
	return s
}

// ParseKind parses a type filter value. The empty string is not a kind; callers
// that accept "no filter" must check for it first.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCoinbase, KindTZE, KindStandard:
		return k, nil
	default:
		return "", fmt.Errorf("invalid transaction kind %q: must be one of %s, %s, %s",
			s, KindCoinbase, KindTZE, KindStandard)
	}
}

func (k Kind) String() string { return string(k) }
