package main

import "github/chapool/wallet-provider/cmd"

func main() {
	cmd.Execute()
}
