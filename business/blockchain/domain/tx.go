package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Call is a contract call the keeper account will sign and send.
type Call struct {
	To       common.Address
	Data     []byte
	GasPrice *big.Int
	GasLimit uint64 // zero means estimate
}

// Receipt is the mined outcome of a sent call.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
	Logs        []*types.Log
}
