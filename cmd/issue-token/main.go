package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/ajharbinger/moat-scoring/internal/auth"
	"github.com/ajharbinger/moat-scoring/pkg/config"
)

// issue-token mints a bearer token for an operator or service account.
func main() {
	subject := flag.String("subject", "", "token subject, e.g. the service or operator name")
	role := flag.String("role", "operator", "role recorded in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, expires, err := auth.NewJWTService(cfg.JWTSecret).WithTTL(*ttl).GenerateToken(*subject, *role)
	if err != nil {
		log.Fatal("Failed to generate token:", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expires.Format(time.RFC3339))
}
