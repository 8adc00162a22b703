// Command devtoken prints an HS256 access token shaped like the identity
// provider's, for calling the API locally.
//
//	go run ./cmd/devtoken -sub user-1 -role CUSTOMER -email guest@example.com
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "user id (required)")
	role := flag.String("role", model.RoleCustomer, "CUSTOMER or OWNER")
	email := flag.String("email", "", "email claim")
	name := flag.String("name", "", "name claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if *sub == "" {
		log.Fatal("-sub is required")
	}
	r := strings.ToUpper(*role)
	if r != model.RoleCustomer && r != model.RoleOwner {
		log.Fatalf("unknown role %q", *role)
	}

	secret, issuer := config.LoadAuthConfig()
	tok, err := utils.NewAccessToken(secret, issuer, model.Principal{
		UserID: *sub,
		Role:   r,
		Email:  *email,
		Name:   *name,
	}, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}
