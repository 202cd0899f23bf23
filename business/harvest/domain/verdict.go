package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Verdict is the outcome of evaluating the harvest triggers for one strategy.
type Verdict struct {
	Time     bool
	Earnings bool
	GasCost  bool
	Harvest  bool

	// Skipped is set when an external read failed; Err holds the cause.
	Skipped bool
	Err     error

	SinceLast        time.Duration
	Claimable        *big.Int
	Output           *big.Int
	StrategistReward *big.Int
	Cost             *big.Int
	GasLimit         uint64
}

// Label names the verdict for metrics and logs.
func (v Verdict) Label() string {
	switch {
	case v.Skipped:
		return "skipped"
	case v.Harvest:
		return "harvest"
	case !v.Time:
		return "time"
	case !v.Earnings:
		return "earnings"
	default:
		return "gas"
	}
}

// HarvestReceipt is what a mined harvest transaction reported.
type HarvestReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	WantEarned  *big.Int
	GasUsed     uint64
}

// Attempt is one harvest transaction, successful or not, as kept in the ledger.
type Attempt struct {
	ID          string
	Strategy    common.Address
	BlockNumber uint64
	GasPrice    *big.Int
	GasLimit    uint64
	Success     bool
	TxHash      common.Hash
	WantEarned  *big.Int
	GasUsed     uint64
	Error       string
	Timestamp   time.Time
}
