package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/subwave/billing-service/internal/auth"
	"github.com/subwave/billing-service/internal/domain/models"
)

// Development tool that mints a bearer token accepted by the API, for
// exercising endpoints without the identity service.
func main() {
	var (
		userID = flag.String("user", "", "user ID (UUID); generated when empty")
		role   = flag.String("role", "basic_user", "role claim: basic_user, subscriber or admin")
		ttl    = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	secretKey := os.Getenv("JWT_SECRET_KEY")
	if secretKey == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	algorithm := os.Getenv("JWT_ALGORITHM")
	if algorithm == "" {
		algorithm = "HS256"
	}

	subject := *userID
	if subject == "" {
		subject = uuid.New().String()
	} else if _, err := uuid.Parse(subject); err != nil {
		log.Fatalf("user ID must be a UUID: %v", err)
	}

	switch models.Role(*role) {
	case models.RoleBasicUser, models.RoleSubscriber, models.RoleAdmin:
	default:
		log.Fatalf("unknown role: %s", *role)
	}

	tokens, err := auth.NewTokenManager(secretKey, algorithm)
	if err != nil {
		log.Fatalf("failed to initialize token manager: %v", err)
	}

	token, err := tokens.GenerateToken(subject, models.Role(*role), *ttl)
	if err != nil {
		log.Fatalf("failed to generate token: %v", err)
	}

	fmt.Printf("user_id: %s\nrole:    %s\nexpires: %s\n\n%s\n",
		subject, *role, time.Now().Add(*ttl).Format(time.RFC3339), token)
}
