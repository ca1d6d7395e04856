package main

import (
	"os"

	"github.com/varsilias/oracle-chat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
