// Command carscout looks up car ratings, descriptions and pros/cons through
// the Gemini generative API.
//
//	carscout serve                        gRPC + HTTP API
//	carscout ask ratings "Honda Civic"    one-shot lookup
//	carscout tui                          interactive terminal UI
//	carscout generate "any prompt"        raw generation passthrough
//
// Settings come from carscout.yaml, CARSCOUT_* environment variables and
// flags; see internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/abdhe/carscout/pkg/carinfo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, carinfo.UserMessage(err))
		os.Exit(1)
	}
}
