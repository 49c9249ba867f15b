package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/weavechain/weaved/foundation/blockweave/signature"
	"github.com/weavechain/weaved/foundation/blockweave/tx"
	"github.com/weavechain/weaved/foundation/blockweave/wallet"
	"github.com/spf13/cobra"
)

var (
	url      string
	to       string
	quantity uint64
	reward   uint64
	data     []byte
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Target address.")
	sendCmd.Flags().Uint64VarP(&quantity, "quantity", "q", 0, "Quantity to send in winston.")
	sendCmd.Flags().Uint64VarP(&reward, "reward", "r", 1, "Mining reward to offer in winston.")
	sendCmd.Flags().BytesHexVarP(&data, "data", "d", nil, "Data to store in the weave.")
}

func sendRun(cmd *cobra.Command, args []string) {
	keys, err := wallet.LoadKeys(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	// Replay protection requires the sender's last transaction id, which
	// the node reports as part of the wallet view.
	lastTx, err := queryLastTx(keys.Address())
	if err != nil {
		log.Fatal(err)
	}

	t := tx.New(wallet.Address(to), quantity, data, reward, lastTx, nil)
	signedTx, err := t.Sign(keys)
	if err != nil {
		log.Fatal(err)
	}

	payload, err := json.Marshal(signedTx)
	if err != nil {
		log.Fatal(err)
	}

	resp, err := http.Post(fmt.Sprintf("%s/v1/tx/submit", url), "application/json", bytes.NewBuffer(payload))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	fmt.Println("Status:", resp.Status)
	fmt.Println("Tx:", signature.Hex(signedTx.ID))
}

// queryLastTx returns the replay protection token for the wallet. A wallet
// the weave has never seen starts from an empty token.
func queryLastTx(addr wallet.Address) ([]byte, error) {
	wl, err := queryWallet(addr)
	if err != nil {
		return nil, err
	}

	if len(wl.Wallets) == 0 || wl.Wallets[0].LastTx == "" || wl.Wallets[0].LastTx == "0x" || wl.Wallets[0].LastTx == signature.ZeroHash {
		return nil, nil
	}

	return signature.FromHex(wl.Wallets[0].LastTx)
}
