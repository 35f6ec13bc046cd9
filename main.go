// file: main.go
// version: 1.0.0
// guid: 2b7e4d9a-6c1f-4e8b-a3d5-9f0b6c2e8a4d

package main

import (
	"fmt"
	"os"

	"github.com/laosuan/BookPlayer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
