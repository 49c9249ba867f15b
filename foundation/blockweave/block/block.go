// Package block implements the weave block record: construction, canonical
// hashing, recall block selection, the mining data segment and full block
// validation.
package block

import (
	"time"

	"github.com/weavechain/weaved/foundation/blockweave/genesis"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// EventHandler defines a function that is called when events occur in the
// processing of blocks.
type EventHandler func(v string, args ...any)

// Block represents a single entry of the weave. Each block commits to its
// immediate predecessor through PrevHash and to a historical recall block
// through the mined data segment.
type Block struct {
	IndepHash    []byte         `json:"indep_hash"`
	PrevHash     []byte         `json:"prev_hash"`
	Height       uint64         `json:"height"`
	Nonce        []byte         `json:"nonce"`
	Hash         []byte         `json:"hash"` // Proof of work hash.
	Diff         uint           `json:"diff"`
	Timestamp    int64          `json:"timestamp"`
	LastRetarget int64          `json:"last_retarget"`
	HashList     [][]byte       `json:"hash_list"` // Ancestor indep hashes, newest first. len == Height.
	WalletList   wallet.List    `json:"wallet_list"`
	Txs          []tx.Tx        `json:"txs"`
	RewardAddr   wallet.Address `json:"reward_addr"`
	WeaveSize    uint64         `json:"weave_size"`
	BlockSize    uint64         `json:"block_size"`
	Tags         []tx.Tag       `json:"tags"`
}

// hashableBlock fixes the field order for the independent hash. It covers
// every block field except the independent hash itself, with transactions
// reduced to their ids.
type hashableBlock struct {
	PrevHash     []byte         `json:"prev_hash"`
	Height       uint64         `json:"height"`
	Nonce        []byte         `json:"nonce"`
	Hash         []byte         `json:"hash"`
	Diff         uint           `json:"diff"`
	Timestamp    int64          `json:"timestamp"`
	LastRetarget int64          `json:"last_retarget"`
	HashList     [][]byte       `json:"hash_list"`
	WalletList   wallet.List    `json:"wallet_list"`
	TxIDs        [][]byte       `json:"txs"`
	RewardAddr   wallet.Address `json:"reward_addr"`
	WeaveSize    uint64         `json:"weave_size"`
	BlockSize    uint64         `json:"block_size"`
	Tags         []tx.Tag       `json:"tags"`
}

// ComputeIndepHash returns the block's identity: the hash over its
// canonical encoding.
func (b Block) ComputeIndepHash() []byte {
	return signature.HashValue(hashableBlock{
		PrevHash:     b.PrevHash,
		Height:       b.Height,
		Nonce:        b.Nonce,
		Hash:         b.Hash,
		Diff:         b.Diff,
		Timestamp:    b.Timestamp,
		LastRetarget: b.LastRetarget,
		HashList:     b.HashList,
		WalletList:   b.WalletList,
		TxIDs:        TxIDs(b.Txs),
		RewardAddr:   b.RewardAddr,
		WeaveSize:    b.WeaveSize,
		BlockSize:    b.BlockSize,
		Tags:         b.Tags,
	})
}

// TxIDs returns the ordered transaction ids for a transaction list.
func TxIDs(txs []tx.Tx) [][]byte {
	ids := make([][]byte, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}
	return ids
}

// =============================================================================

// Genesis constructs the height zero block from the genesis file. Every
// node on the same network derives the identical genesis block.
func Genesis(gen genesis.Genesis) (Block, error) {
	wallets := make(wallet.List, 0, len(gen.Balances))
	for addrStr, balance := range gen.Balances {
		addr, err := wallet.ToAddressString(addrStr)
		if err != nil {
			return Block{}, err
		}
		wallets = append(wallets, wallet.Wallet{Address: addr, Balance: balance})
	}

	ts := gen.Date.Unix()
	if gen.Date.IsZero() {
		ts = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).Unix()
	}

	b := Block{
		PrevHash:     make([]byte, signature.HashSize),
		Height:       0,
		Nonce:        []byte{},
		Hash:         make([]byte, signature.HashSize),
		Diff:         genesis.GenesisDiff,
		Timestamp:    ts,
		LastRetarget: ts,
		HashList:     [][]byte{},
		WalletList:   wallets.Normalize(),
		RewardAddr:   wallet.AddressUnclaimed,
	}
	b.IndepHash = b.ComputeIndepHash()

	return b, nil
}

// =============================================================================

// Add appends a new block to the weave on top of prev. The wallet list is
// the ledger after applying txs and the mining reward. The nonce and pow
// hash come from a completed mining proof.
func Add(prev Block, wallets wallet.List, txs []tx.Tx, nonce []byte, powHash []byte, diff uint, timestamp int64, lastRetarget int64, rewardAddr wallet.Address) Block {
	hashList := make([][]byte, 0, len(prev.HashList)+1)
	hashList = append(hashList, prev.IndepHash)
	hashList = append(hashList, prev.HashList...)

	b := Block{
		PrevHash:     prev.IndepHash,
		Height:       prev.Height + 1,
		Nonce:        nonce,
		Hash:         powHash,
		Diff:         diff,
		Timestamp:    timestamp,
		LastRetarget: lastRetarget,
		HashList:     hashList,
		WalletList:   wallets.Normalize(),
		Txs:          txs,
		RewardAddr:   rewardAddr,
		WeaveSize:    prev.WeaveSize + txsDataSize(txs),
		BlockSize:    txsDataSize(txs),
	}
	b.IndepHash = b.ComputeIndepHash()

	return b
}

// txsDataSize sums the payload bytes carried by a transaction list.
func txsDataSize(txs []tx.Tx) uint64 {
	var size uint64
	for _, t := range txs {
		size += t.DataSize()
	}
	return size
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	s := signature.Hex(b.IndepHash)
	if len(s) > 10 {
		s = s[:10]
	}
	return s
}
