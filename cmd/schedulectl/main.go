package main

import (
	"fmt"
	"os"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
