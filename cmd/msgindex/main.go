// Command msgindex indexes and searches short messages.
package main

import (
	"os"

	"github.com/Aman-CERP/msgindex/cmd/msgindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
