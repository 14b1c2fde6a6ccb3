package main

import "github.com/flicky/go-storefront-api/cmd/storefrontctl/commands"

func main() {
	commands.Execute()
}
