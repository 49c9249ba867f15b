package public

import (
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

type info struct {
	Host            string `json:"host"`
	Joined          bool   `json:"joined"`
	Height          uint64 `json:"height"`
	Diff            uint   `json:"difficulty"`
	Mempool         int    `json:"mempool"`
	Peers           int    `json:"peers"`
	LatestBlockHash string `json:"latest_block_hash,omitempty"`
}

type walletInfo struct {
	Address wallet.Address `json:"address"`
	Name    string         `json:"name,omitempty"`
	Balance uint64         `json:"balance"`
	LastTx  string         `json:"last_tx"`
}

type walletList struct {
	LatestBlockHash string       `json:"latest_block_hash"`
	Uncommitted     int          `json:"uncommitted"`
	Wallets         []walletInfo `json:"wallets"`
}

type txInfo struct {
	ID       string         `json:"id"`
	From     wallet.Address `json:"from"`
	FromName string         `json:"from_name,omitempty"`
	To       wallet.Address `json:"to,omitempty"`
	ToName   string         `json:"to_name,omitempty"`
	Quantity uint64         `json:"quantity"`
	Reward   uint64         `json:"reward"`
	DataSize uint64         `json:"data_size"`
}

type submitTag struct {
	Name  []byte `json:"name"`
	Value []byte `json:"value"`
}

// submitTx is a fully signed transaction as submitted by a wallet client.
type submitTx struct {
	ID        []byte         `json:"id" validate:"required"`
	LastTx    []byte         `json:"last_tx"`
	Owner     []byte         `json:"owner" validate:"required"`
	Target    wallet.Address `json:"target"`
	Quantity  uint64         `json:"quantity"`
	Data      []byte         `json:"data"`
	Reward    uint64         `json:"reward" validate:"required,gt=0"`
	Tags      []submitTag    `json:"tags"`
	Signature []byte         `json:"signature" validate:"required"`
}

func (st submitTx) toTx() tx.Tx {
	tags := make([]tx.Tag, len(st.Tags))
	for i, tg := range st.Tags {
		tags[i] = tx.Tag{Name: tg.Name, Value: tg.Value}
	}

	return tx.Tx{
		ID:        st.ID,
		LastTx:    st.LastTx,
		Owner:     st.Owner,
		Target:    st.Target,
		Quantity:  st.Quantity,
		Data:      st.Data,
		Reward:    st.Reward,
		Tags:      tags,
		Signature: st.Signature,
	}
}
