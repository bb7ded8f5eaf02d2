// Command token mints HMAC-signed bearer tokens for local testing.
//
//	token -secret s3cr3t -sub alice -ttl 1h
//	AUTHGATE_JWT_SECRET=s3cr3t token -sub alice -json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmorady/authgate/pkg/auth"
	"github.com/mmorady/authgate/pkg/auth/jwt"
)

func main() {
	secret := flag.String("secret", os.Getenv("AUTHGATE_JWT_SECRET"), "HMAC signing secret (default: $AUTHGATE_JWT_SECRET)")
	alg := flag.String("alg", jwt.DefaultAlgorithm, "Signing algorithm: HS256, HS384 or HS512")
	sub := flag.String("sub", "dev-user", "Subject claim")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime, ignored when -exp is set")
	exp := flag.Int64("exp", 0, "Fixed exp claim as a Unix timestamp")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	strategy, err := jwt.New(jwt.Config{Secret: []byte(*secret), Algorithm: *alg})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating JWT strategy: %v\n", err)
		os.Exit(1)
	}

	now := time.Now()
	expiresAt := now.Add(*ttl).Unix()
	if *exp != 0 {
		expiresAt = *exp
	}

	token, err := strategy.Sign(auth.Claims{
		"sub": *sub,
		"iat": now.Unix(),
		"exp": expiresAt,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing token: %v\n", err)
		os.Exit(1)
	}

	if *outputJSON {
		output := map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   expiresAt - now.Unix(),
			"sub":          *sub,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output)
		return
	}

	fmt.Printf("Subject:  %s\n", *sub)
	fmt.Printf("Expires:  %s\n", time.Unix(expiresAt, 0).Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
}
