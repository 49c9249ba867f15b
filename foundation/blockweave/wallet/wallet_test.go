package wallet_test

import (
	"path/filepath"
	"testing"

	"github.com/weavechain/weaved/foundation/blockweave/wallet"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_Keys(t *testing.T) {
	t.Log("Given the need to generate, save and load a keypair.")
	{
		keys, err := wallet.GenerateKeys()
		if err != nil {
			t.Fatalf("\t%s\tShould be able to generate keys: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to generate keys.", success)

		if !keys.Address().IsValid() {
			t.Fatalf("\t%s\tShould derive a valid address: got %q", failed, keys.Address())
		}
		t.Logf("\t%s\tShould derive a valid address.", success)

		path := filepath.Join(t.TempDir(), "private.ecdsa")
		if err := keys.Save(path); err != nil {
			t.Fatalf("\t%s\tShould be able to save the keys: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to save the keys.", success)

		loaded, err := wallet.LoadKeys(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the keys: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the keys.", success)

		if loaded.Address() != keys.Address() {
			t.Fatalf("\t%s\tShould derive the same address after the round trip.", failed)
		}
		t.Logf("\t%s\tShould derive the same address after the round trip.", success)
	}
}

func Test_Address(t *testing.T) {
	t.Log("Given the need to validate address encodings.")
	{
		if _, err := wallet.ToAddressString("0xnot hex at all"); err == nil {
			t.Fatalf("\t%s\tShould reject a malformed address.", failed)
		}
		t.Logf("\t%s\tShould reject a malformed address.", success)

		if !wallet.AddressUnclaimed.IsUnclaimed() {
			t.Fatalf("\t%s\tShould recognize the unclaimed sentinel.", failed)
		}
		t.Logf("\t%s\tShould recognize the unclaimed sentinel.", success)

		if len(wallet.AddressUnclaimed.Bytes()) == 0 {
			t.Fatalf("\t%s\tShould give the sentinel a stable byte form.", failed)
		}
		t.Logf("\t%s\tShould give the sentinel a stable byte form.", success)
	}
}

func Test_List(t *testing.T) {
	t.Log("Given the need to keep the wallet list canonical.")
	{
		l := wallet.List{
			{Address: "0xbb", Balance: 10},
			{Address: "0xaa", Balance: 0},
			{Address: "0x aa", Balance: 5},
		}

		n := l.Normalize()
		if len(n) != 2 {
			t.Fatalf("\t%s\tShould drop zero balance wallets: got %d", failed, len(n))
		}
		t.Logf("\t%s\tShould drop zero balance wallets.", success)

		if n[0].Address > n[1].Address {
			t.Fatalf("\t%s\tShould sort the list by address.", failed)
		}
		t.Logf("\t%s\tShould sort the list by address.", success)

		if !n.Equal(n.Clone()) {
			t.Fatalf("\t%s\tShould compare a clone as equal.", failed)
		}
		t.Logf("\t%s\tShould compare a clone as equal.", success)

		if n.Equal(l) {
			t.Fatalf("\t%s\tShould compare different lists as unequal.", failed)
		}
		t.Logf("\t%s\tShould compare different lists as unequal.", success)
	}
}
