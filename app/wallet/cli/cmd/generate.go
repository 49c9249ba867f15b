package cmd

import (
	"log"

	"github.com/weavechain/weaved/foundation/blockweave/wallet"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	keys, err := wallet.GenerateKeys()
	if err != nil {
		log.Fatal(err)
	}

	if err := keys.Save(getPrivateKeyPath()); err != nil {
		log.Fatal(err)
	}
}
