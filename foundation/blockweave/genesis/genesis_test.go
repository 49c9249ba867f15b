package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/weavechain/weaved/foundation/blockweave/genesis"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const document = `
{
  "date": "2026-01-01T00:00:00Z",
  "chain_id": 1,
  "balances": {
    "0x16b8dbd1e2f9a27b2d16a26ae0b0b7ecbbc4d9f5d1a5b2a2d1e38a20e7482da8": 100000
  }
}`

// =============================================================================

func Test_Load(t *testing.T) {
	t.Log("Given the need to consume a genesis file.")
	{
		path := filepath.Join(t.TempDir(), "genesis.json")
		if err := os.WriteFile(path, []byte(document), 0600); err != nil {
			t.Fatalf("\t%s\tShould be able to write the genesis file: %s", failed, err)
		}

		gen, err := genesis.Load(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the genesis file: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the genesis file.", success)

		if gen.ChainID != 1 {
			t.Fatalf("\t%s\tShould carry the chain id: got %d", failed, gen.ChainID)
		}
		t.Logf("\t%s\tShould carry the chain id.", success)

		if len(gen.Balances) != 1 {
			t.Fatalf("\t%s\tShould carry the minted balances: got %d", failed, len(gen.Balances))
		}
		t.Logf("\t%s\tShould carry the minted balances.", success)

		if _, err := genesis.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
			t.Fatalf("\t%s\tShould fail on a missing file.", failed)
		}
		t.Logf("\t%s\tShould fail on a missing file.", success)
	}
}
