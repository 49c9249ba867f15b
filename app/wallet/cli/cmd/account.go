package cmd

import (
	"fmt"
	"log"

	"github.com/weavechain/weaved/foundation/blockweave/wallet"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print the address for the specific wallet",
	Run:   accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func accountRun(cmd *cobra.Command, args []string) {
	keys, err := wallet.LoadKeys(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(keys.Address())
}
