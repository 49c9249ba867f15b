package store_test

import (
	"testing"

	"github.com/weavechain/weaved/foundation/blockweave/block"
	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/store"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/stretchr/testify/require"
)

func Test_StoreRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s, err := store.New(dir)
	require.NoError(t, err)
	defer s.Close()

	b := testBlock(1, 1)
	require.NoError(t, s.WriteBlock(b))

	// A second store over the same path has a cold cache, so reads come
	// off the disk files.
	s2, err := store.New(dir)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetBlock(b.IndepHash)
	require.NoError(t, err)
	require.Equal(t, b.IndepHash, got.IndepHash)
	require.Equal(t, b.Height, got.Height)
	require.Len(t, got.Txs, 1)
	require.Equal(t, b.Txs[0].ID, got.Txs[0].ID)

	gotTx, err := s2.GetTx(b.Txs[0].ID)
	require.NoError(t, err)
	require.Equal(t, b.Txs[0].Data, gotTx.Data)

	_, err = s2.GetBlock(signature.Hash([]byte("never written")))
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s2.GetTx(signature.Hash([]byte("never written")))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func Test_StoreWriteTxs(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	t1 := testTx(9)
	require.NoError(t, s.WriteTxs([]tx.Tx{t1}))

	got, err := s.GetTx(t1.ID)
	require.NoError(t, err)
	require.Equal(t, t1.ID, got.ID)
}

func Test_StoreForEach(t *testing.T) {
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	b1 := testBlock(1, 1)
	b2 := testBlock(2, 2)
	b3 := testBlock(3, 3)
	for _, b := range []block.Block{b1, b2, b3} {
		require.NoError(t, s.WriteBlock(b))
	}

	// Hash lists are newest first, the walk yields oldest first.
	hashList := [][]byte{b3.IndepHash, b2.IndepHash, b1.IndepHash}

	var heights []uint64
	for it := s.ForEach(hashList); !it.Done(); {
		b, err := it.Next()
		require.NoError(t, err)
		heights = append(heights, b.Height)
	}
	require.Equal(t, []uint64{1, 2, 3}, heights)

	missing := [][]byte{b2.IndepHash, signature.Hash([]byte("gone"))}
	it := s.ForEach(missing)
	_, err = it.Next()
	require.ErrorIs(t, err, store.ErrNotFound)
	require.True(t, it.Done())
}

// =============================================================================

func testTx(seed byte) tx.Tx {
	return tx.Tx{
		ID:     signature.Hash([]byte{seed}),
		Reward: 1,
		Data:   []byte{seed, seed},
	}
}

func testBlock(seed byte, height uint64) block.Block {
	b := block.Block{
		PrevHash: signature.Hash([]byte{seed, 0}),
		Height:   height,
		Nonce:    []byte{seed},
		Hash:     signature.Hash([]byte{seed, 1}),
		Diff:     8,
		Txs:      []tx.Tx{testTx(seed)},
	}
	b.IndepHash = b.ComputeIndepHash()

	return b
}
