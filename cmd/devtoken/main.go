// Command devtoken mints a bearer token for local development.
//
// It reads the same configuration as the API, so the token verifies against a server
// started with the same HOUSEHEALTH_AUTH_* settings:
//
//	devtoken -sub <user-id> [-ttl 30m]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/househealth/househealth-api/internal/platform/auth/jwtverifier"
	"github.com/househealth/househealth-api/internal/platform/config"
)

func main() {
	sub := flag.String("sub", "", "token subject (user id)")
	ttl := flag.Duration("ttl", 30*time.Minute, "token lifetime")
	flag.Parse()

	if *sub == "" {
		fmt.Fprintln(os.Stderr, "devtoken: -sub is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Mode != "jwt" {
		fmt.Fprintln(os.Stderr, "devtoken: auth.mode is not jwt; tokens are ignored in dev mode")
		os.Exit(1)
	}

	token, err := jwtverifier.New(cfg.Auth).Issue(*sub, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devtoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
