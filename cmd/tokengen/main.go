// Command tokengen mints an HS256 access token for the booking API.  Staff
// and admin accounts are provisioned outside this service; operators use
// this tool to obtain a bearer token for them.
//
//	tokengen -user 1 -role Staff -email desk@example.com -ttl 12h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/model"
	"github.com/iliyamo/hotel-reservation/internal/utils"
)

func main() {
	userID := flag.Uint64("user", 0, "user id placed in the sub claim")
	role := flag.String("role", model.RoleStaff, "Customer, Staff or Admin")
	email := flag.String("email", "", "email claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	config.LoadDotEnv()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	if *userID == 0 {
		log.Fatal("-user is required")
	}
	if !model.IsValidRole(*role) {
		log.Fatalf("unknown role %q", *role)
	}

	tok, err := utils.NewAccessToken(secret, *userID, *email, *role, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
