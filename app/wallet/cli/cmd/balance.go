package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/weavechain/weaved/foundation/blockweave/wallet"
	"github.com/spf13/cobra"
)

type walletInfo struct {
	Address wallet.Address `json:"address"`
	Name    string         `json:"name"`
	Balance uint64         `json:"balance"`
	LastTx  string         `json:"last_tx"`
}

type walletList struct {
	LatestBlockHash string       `json:"latest_block_hash"`
	Uncommitted     int          `json:"uncommitted"`
	Wallets         []walletInfo `json:"wallets"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

func balanceRun(cmd *cobra.Command, args []string) {
	keys, err := wallet.LoadKeys(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	addr := keys.Address()
	fmt.Println("For Wallet:", addr)

	wl, err := queryWallet(addr)
	if err != nil {
		log.Fatal(err)
	}

	if len(wl.Wallets) > 0 {
		fmt.Println(wl.Wallets[0].Balance)
	}
}

// queryWallet asks the node for the current view of the specified wallet.
func queryWallet(addr wallet.Address) (walletList, error) {
	resp, err := http.Get(fmt.Sprintf("%s/v1/wallets/list/%s", url, addr))
	if err != nil {
		return walletList{}, err
	}
	defer resp.Body.Close()

	var wl walletList
	if err := json.NewDecoder(resp.Body).Decode(&wl); err != nil {
		return walletList{}, err
	}

	return wl, nil
}
