package tx_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// A reward safely above the minimum cost of an empty payload at any of
// the difficulties used in these tests.
const bigReward = 500_000_000

// =============================================================================

func Test_SignRoundTrip(t *testing.T) {
	t.Log("Given the need to sign a transaction and verify it.")
	{
		keys, err := wallet.GenerateKeys()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate keys: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to generate keys.", success)

		target := otherAddress(t, keys)
		signed, err := tx.New(target, 100, nil, bigReward, nil, nil).Sign(keys)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the transaction: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to sign the transaction.", success)

		if !bytes.Equal(signed.ID, signature.Hash(signed.Signature)) {
			t.Fatalf("\t%s\tShould derive the id from the signature.", failed)
		}
		t.Logf("\t%s\tShould derive the id from the signature.", success)

		if signed.FromAddress() != keys.Address() {
			t.Fatalf("\t%s\tShould recover the sender address from the owner key.", failed)
		}
		t.Logf("\t%s\tShould recover the sender address from the owner key.", success)

		wallets := wallet.List{{Address: keys.Address(), Balance: bigReward * 2}}
		if err := tx.Verify(signed, 8, wallets); err != nil {
			t.Fatalf("\t%s\tShould be able to verify the transaction: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to verify the transaction.", success)
	}
}

func Test_VerifyRejections(t *testing.T) {
	keys, err := wallet.GenerateKeys()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate keys: %s", failed, err)
	}

	target := otherAddress(t, keys)
	wallets := wallet.List{{Address: keys.Address(), Balance: bigReward * 2}}

	type table struct {
		name    string
		mutate  func(t tx.Tx) tx.Tx
		wallets wallet.List
		err     error
	}

	tt := []table{
		{
			name:    "too cheap",
			mutate:  func(t tx.Tx) tx.Tx { t.Reward = 1; return t },
			wallets: wallets,
			err:     tx.ErrTooCheap,
		},
		{
			name:    "tampered id",
			mutate:  func(t tx.Tx) tx.Tx { t.ID = signature.Hash([]byte("other")); return t },
			wallets: wallets,
			err:     tx.ErrIDNotValid,
		},
		{
			name:    "tampered quantity",
			mutate:  func(t tx.Tx) tx.Tx { t.Quantity = 9999; return t },
			wallets: wallets,
			err:     tx.ErrSignatureNotValid,
		},
		{
			name:    "stale last_tx",
			mutate:  func(t tx.Tx) tx.Tx { return t },
			wallets: wallet.List{{Address: keys.Address(), Balance: bigReward * 2, LastTx: signature.Hash([]byte("prior"))}},
			err:     tx.ErrLastTxNotValid,
		},
		{
			name:    "unknown sender",
			mutate:  func(t tx.Tx) tx.Tx { return t },
			wallets: wallet.List{{Address: target, Balance: bigReward}},
			err:     tx.ErrLastTxNotValid,
		},
		{
			name:    "empty tag name",
			mutate:  func(t tx.Tx) tx.Tx { t.Tags = []tx.Tag{{Name: nil, Value: []byte("v")}}; return t },
			wallets: wallets,
			err:     tx.ErrTagIllegal,
		},
		{
			name:    "insufficient balance",
			mutate:  func(t tx.Tx) tx.Tx { return t },
			wallets: wallet.List{{Address: keys.Address(), Balance: 10}},
			err:     tx.ErrVerificationFailed,
		},
	}

	t.Log("Given the need to reject invalid transactions with stable reasons.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				signed, err := tx.New(target, 100, nil, bigReward, nil, nil).Sign(keys)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to sign the transaction: %s", failed, testID, err)
				}

				// Mutations of signed fields deliberately break the signature
				// or id so the reason codes can be observed.
				signed = tst.mutate(signed)

				err = tx.Verify(signed, 8, tst.wallets)
				if !errors.Is(err, tst.err) {
					t.Logf("\t%s\tTest %d:\tgot: %v", failed, testID, err)
					t.Logf("\t%s\tTest %d:\texp: %v", failed, testID, tst.err)
					t.Fatalf("\t%s\tTest %d:\tShould get the right rejection reason.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould get the right rejection reason.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_SelfTransfer(t *testing.T) {
	t.Log("Given the need to reject transfers from a wallet to itself.")
	{
		keys, err := wallet.GenerateKeys()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate keys: %s", failed, err)
		}

		signed, err := tx.New(keys.Address(), 100, nil, bigReward, nil, nil).Sign(keys)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the transaction: %s", failed, err)
		}

		wallets := wallet.List{{Address: keys.Address(), Balance: bigReward * 2}}
		if err := tx.Verify(signed, 8, wallets); !errors.Is(err, tx.ErrVerificationFailed) {
			t.Fatalf("\t%s\tShould reject a self transfer: got %v", failed, err)
		}
		t.Logf("\t%s\tShould reject a self transfer.", success)

		// A data transaction carries no target, so the same owner is fine.
		data, err := tx.New("", 0, []byte("payload"), bigReward, nil, nil).Sign(keys)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to sign the data transaction: %s", failed, err)
		}

		if err := tx.Verify(data, 8, wallets); err != nil {
			t.Fatalf("\t%s\tShould accept a data transaction without a target: %s", failed, err)
		}
		t.Logf("\t%s\tShould accept a data transaction without a target.", success)
	}
}

func Test_MinCost(t *testing.T) {
	t.Log("Given the need to price storage against size and difficulty.")
	{
		small := tx.MinCost(0, 8)
		big := tx.MinCost(1_000_000, 8)
		if big <= small {
			t.Fatalf("\t%s\tShould price larger payloads higher: %d <= %d", failed, big, small)
		}
		t.Logf("\t%s\tShould price larger payloads higher.", success)

		easy := tx.MinCost(1_000_000, 40)
		if easy >= big {
			t.Fatalf("\t%s\tShould price higher difficulty cheaper: %d >= %d", failed, easy, big)
		}
		t.Logf("\t%s\tShould price higher difficulty cheaper.", success)
	}
}

// =============================================================================

// otherAddress generates a second wallet to act as the receiving side.
func otherAddress(t *testing.T, not wallet.Keys) wallet.Address {
	t.Helper()

	for {
		keys, err := wallet.GenerateKeys()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate keys: %s", failed, err)
		}
		if keys.Address() != not.Address() {
			return keys.Address()
		}
	}
}
