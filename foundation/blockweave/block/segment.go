package block

import (
	"bytes"

	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// DataSegment produces the byte segment a miner must hash over. Mixing in
// the recall block's nonce, pow hash and transaction ids forces the miner
// to hold the recall block, which is what makes old data worth storing.
func DataSegment(txs []tx.Tx, recall Block, rewardAddr wallet.Address) []byte {
	var buf bytes.Buffer

	buf.Write(blockData(txs))
	buf.Write(recall.Nonce)
	buf.Write(recall.Hash)
	buf.Write(blockData(recall.Txs))
	buf.Write(rewardAddr.Bytes())

	return buf.Bytes()
}

// blockData concatenates the ordered transaction ids.
func blockData(txs []tx.Tx) []byte {
	var buf bytes.Buffer
	for _, t := range txs {
		buf.Write(t.ID)
	}
	return buf.Bytes()
}
