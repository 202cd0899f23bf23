// Package domain contains the core domain types for the blockchain context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is the header of a newly observed block.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
	Timestamp  time.Time
	BaseFee    *big.Int
}

// ConnectionState represents the state of a node connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// ConnectionStatus is a snapshot of the subscriber for health checks.
type ConnectionStatus struct {
	State      ConnectionState
	LastBlock  uint64
	LastSeen   time.Time
	Reconnects int
	UsingHTTP  bool
}
