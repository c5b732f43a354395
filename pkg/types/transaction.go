package types

type Transaction struct {
	TxID        string `json:"txid"`
	Vin         []Vin  `json:"vin"`
	Vout        []Vout `json:"vout"`
	BlockHeight uint64 `json:"block_height"`
	BlockHash   string `json:"block_hash,omitempty"`
	Size        uint64 `json:"size"`
	Version     int64  `json:"version"`
	Locktime    uint64 `json:"locktime"`
}

// Vin is a transaction input. Coinbase is set only on the single input of a
// coinbase transaction.
type Vin struct {
	Coinbase  string  `json:"coinbase,omitempty"`
	TxID      string  `json:"txid,omitempty"`
	Vout      *uint32 `json:"vout,omitempty"`
	ScriptSig *Script `json:"scriptSig,omitempty"`
	Sequence  uint64  `json:"sequence"`
}

// Vout is a transaction output. Value is a pointer because the indexer omits
// it for some outputs; a missing value counts as zero.
type Vout struct {
	Value        *float64 `json:"value,omitempty"`
	ValueZat     *int64   `json:"valueZat,omitempty"`
	N            uint32   `json:"n"`
	ScriptPubKey Script   `json:"scriptPubKey"`
}

type Script struct {
	Asm       string   `json:"asm,omitempty"`
	Hex       string   `json:"hex"`
	Type      string   `json:"type,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

// IsCoinbase reports whether the input carries a coinbase marker.
func (v Vin) IsCoinbase() bool {
	return v.Coinbase != ""
}
