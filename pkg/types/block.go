package types

// Block is a block as returned by getblock with verbosity 1. Transactions are
// listed by txid only.
type Block struct {
	Hash          string      `json:"hash"`
	Height        uint64      `json:"height"`
	Confirmations int64       `json:"confirmations"`
	Size          uint64      `json:"size"`
	Version       int64       `json:"version"`
	Time          int64       `json:"time"`
	Difficulty    float64     `json:"difficulty"`
	PreviousHash  string      `json:"previousblockhash,omitempty"`
	NextHash      string      `json:"nextblockhash,omitempty"`
	Tx            []string    `json:"tx"`
	ValuePools    []ValuePool `json:"valuePools,omitempty"`
}

// ValuePool reports the shielded or transparent pool balance at a block.
type ValuePool struct {
	ID            string   `json:"id"`
	Monitored     bool     `json:"monitored"`
	ChainValue    *float64 `json:"chainValue,omitempty"`
	ChainValueZat *int64   `json:"chainValueZat,omitempty"`
	ValueDelta    *float64 `json:"valueDelta,omitempty"`
	ValueDeltaZat *int64   `json:"valueDeltaZat,omitempty"`
}

// TxCount returns the number of transactions in the block.
func (b *Block) TxCount() int {
	return len(b.Tx)
}
