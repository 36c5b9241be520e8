// Seed registers a development account (dev@example.com) through the normal registration flow so the hosted auth
// user and the users row are created together. Safe to re-run; refuses to run when APP_ENV=production.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"identity-gateway/internal/config"
	"identity-gateway/internal/identity/service"
	"identity-gateway/internal/mfa"
	"identity-gateway/internal/security"
	"identity-gateway/internal/supabase"
	userrepo "identity-gateway/internal/user/repository"
)

const (
	devUserName  = "Dev User"
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		log.Fatal("seed: refusing to seed when APP_ENV=production")
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.HTTPTimeout())
	if err != nil {
		log.Fatalf("supabase: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, err := userrepo.OpenStore(ctx, client, cfg.DatabaseURL, cfg.UsersTable)
	if err != nil {
		log.Fatalf("users: %v", err)
	}
	defer users.Close()

	svc := service.NewAuthService(
		client,
		users,
		security.NewPasswordHasher(cfg.BcryptCost),
		mfa.NewCodeGenerator(cfg.TwoFACodeDigits),
		nil,
		nil,
		service.Options{OAuthProvider: cfg.OAuthProvider, CodeTTL: cfg.CodeTTL()},
	)

	res, err := svc.Register(ctx, service.RegisterInput{Name: devUserName, Email: devUserEmail, Password: devPassword})
	if err != nil {
		var svcErr *service.Error
		if errors.As(err, &svcErr) && svcErr.Status == http.StatusBadRequest && svcErr.Message == service.MsgAlreadyRegistered {
			log.Printf("Seed already applied (%s exists). Skipping.", devUserEmail)
			return
		}
		log.Fatalf("seed: %v", err)
	}
	log.Printf("Seed complete: %s (id %v). %s", devUserEmail, res.User["id"], res.Message)
}
