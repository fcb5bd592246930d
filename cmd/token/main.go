package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"roombook/pkg/auth"

	"github.com/joho/godotenv"
)

// token prints a signed bearer token for local development. It reads
// JWT_SECRET from the environment or a .env file.
func main() {
	user := flag.String("user", "", "subject (user id) of the token")
	role := flag.String("role", auth.RoleRegularUser, "admin, facility_manager or regular_user")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fail("failed to read .env file: %v", err)
	}

	secret := os.Getenv("JWT_SECRET")
	switch {
	case secret == "":
		fail("JWT_SECRET is not set")
	case *user == "":
		fail("-user is required")
	}
	switch *role {
	case auth.RoleAdmin, auth.RoleFacilityManager, auth.RoleRegularUser:
	default:
		fail("unknown role %q", *role)
	}

	token, err := auth.Issue(secret, *user, *role, *ttl)
	if err != nil {
		fail("failed to sign token: %v", err)
	}
	fmt.Println(token)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
