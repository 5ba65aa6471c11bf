// Package evmlog defines the wire-level types the engine consumes from
// its Log Source collaborator: blocks, decoded logs, and the ordering
// rule used to replay a block's logs deterministically (spec.md §3, §6.1).
package evmlog

import "github.com/ethereum/go-ethereum/common"

// Block is a minimal chain header: enough to detect extensions, reorgs,
// and gaps without depending on a full header type from any particular
// chain client.
type Block struct {
	Number     uint64
	Hash       common.Hash
	ParentHash common.Hash
}

// Log is a decoded EVM log, carrying enough ordering information
// (TxIndex, LogIndex) to reproduce the exact in-block application order
// the chain itself used.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	BlockHash   common.Hash
	TxIndex     uint
	LogIndex    uint
}

// Topic0 returns the event signature topic, or the zero hash for an
// anonymous log (which the engine never expects to receive).
func (l Log) Topic0() common.Hash {
	if len(l.Topics) == 0 {
		return common.Hash{}
	}
	return l.Topics[0]
}

// Less orders two logs from the same block by (tx_index, log_index),
// the total order required by spec.md §3 "Block & Log".
func Less(a, b Log) bool {
	if a.TxIndex != b.TxIndex {
		return a.TxIndex < b.TxIndex
	}
	return a.LogIndex < b.LogIndex
}

// SortLogs sorts a block's logs in place into canonical application order.
func SortLogs(logs []Log) {
	insertionSortLogs(logs)
}

// insertionSortLogs avoids importing sort for a slice that in practice
// never exceeds a few hundred entries per block and arrives nearly
// sorted from most log sources.
func insertionSortLogs(logs []Log) {
	for i := 1; i < len(logs); i++ {
		for j := i; j > 0 && Less(logs[j], logs[j-1]); j-- {
			logs[j], logs[j-1] = logs[j-1], logs[j]
		}
	}
}
