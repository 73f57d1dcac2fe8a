package main

import (
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/cli"
)

func main() {
	cli.Execute()
}
