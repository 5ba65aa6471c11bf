package evmlog

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSortLogsOrdersByTxIndexThenLogIndex(t *testing.T) {
	logs := []Log{
		{TxIndex: 2, LogIndex: 0},
		{TxIndex: 0, LogIndex: 5},
		{TxIndex: 0, LogIndex: 1},
		{TxIndex: 1, LogIndex: 0},
	}
	SortLogs(logs)

	want := []Log{
		{TxIndex: 0, LogIndex: 1},
		{TxIndex: 0, LogIndex: 5},
		{TxIndex: 1, LogIndex: 0},
		{TxIndex: 2, LogIndex: 0},
	}
	assert.Equal(t, want, logs)
}

func TestSortLogsIsStableUnderAlreadySortedInput(t *testing.T) {
	logs := []Log{
		{TxIndex: 0, LogIndex: 0, Address: common.HexToAddress("0x1")},
		{TxIndex: 0, LogIndex: 1, Address: common.HexToAddress("0x2")},
	}
	SortLogs(logs)
	assert.Equal(t, common.HexToAddress("0x1"), logs[0].Address)
	assert.Equal(t, common.HexToAddress("0x2"), logs[1].Address)
}

func TestTopic0ReturnsZeroHashForAnonymousLog(t *testing.T) {
	l := Log{}
	assert.Equal(t, common.Hash{}, l.Topic0())
}

func TestTopic0ReturnsFirstTopic(t *testing.T) {
	sig := common.HexToHash("0xabc")
	l := Log{Topics: []common.Hash{sig, common.HexToHash("0x1")}}
	assert.Equal(t, sig, l.Topic0())
}
