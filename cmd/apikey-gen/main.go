package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/predatorx7/logtopus/pkg/auth"
)

func main() {
	clientID := flag.String("client", "", "Client ID to issue key for")
	secret := flag.String("secret", "", "Master secret key (or use AUTH_SECRET env var)")
	verify := flag.String("verify", "", "Check an existing key instead of issuing one")
	flag.Parse()

	secretKey := *secret
	if secretKey == "" {
		secretKey = os.Getenv("AUTH_SECRET")
	}
	if secretKey == "" {
		log.Fatal("Error: Secret is required via -secret flag or AUTH_SECRET env var")
	}

	if *verify != "" {
		valid, id, err := auth.VerifyAPIKey(*verify, []byte(secretKey))
		if !valid {
			fmt.Printf("Invalid key: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Valid key for client '%s'\n", id)
		return
	}

	if *clientID == "" {
		fmt.Println("Usage: apikey-gen -client <clientID> [-secret <secret>]")
		fmt.Println("       apikey-gen -verify <key> [-secret <secret>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	key := auth.IssueAPIKey(*clientID, []byte(secretKey))
	fmt.Printf("Issued API Key for '%s':\n%s\n", *clientID, key)
	fmt.Printf("Send it as the %s header.\n", auth.HeaderAPIKey)
}
