// Command keygen generates a client API key and the SHA-256 hash to place in
// the gateway's auth configuration.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/relaygate/relaygate/internal/auth"
)

func main() {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}

	key := "rg-" + hex.EncodeToString(buf)
	fmt.Printf("api key:  %s\n", key)
	fmt.Printf("key hash: %s\n", auth.HashAPIKey(key))
}
