package main

import (
	"os"

	"github.com/koscakluka/ema-agent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
