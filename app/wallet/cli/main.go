package main

import "github.com/weavechain/weaved/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
