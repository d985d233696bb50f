package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"herowatch/config"
	"herowatch/internal/hero"
	"herowatch/internal/storage/sqlite"
)

// hero-login performs the one-time OAuth2 login exchange against the Hero
// identity host and seeds the credential store with the resulting refresh
// token. Steady-state polling never needs the password again.
func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	email := flag.String("email", "", "Hero account email")
	password := flag.String("password", "", "Hero account password (prompted if omitted)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)
	if *email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("Failed to read email: %v", err)
		}
		*email = strings.TrimSpace(line)
	}
	if *password == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		*password = strings.TrimSpace(line)
	}
	if *email == "" || *password == "" {
		log.Fatal("Email and password are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Println("Logging in to Hero...")
	result, err := hero.Login(ctx, hero.LoginConfig{
		LoginURL:    cfg.Hero.LoginURL,
		TokenURL:    cfg.Hero.TokenURL,
		ClientID:    cfg.Hero.ClientID,
		RedirectURI: cfg.Hero.RedirectURI,
	}, *email, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}

	// Fetch user details for the account scope; not fatal if it fails
	accountID := ""
	client := hero.NewClient(hero.ClientConfig{
		BaseURL:  cfg.Hero.BaseURL,
		TokenURL: cfg.Hero.TokenURL,
		ClientID: cfg.Hero.ClientID,
	}, result.RefreshToken, nil)
	if details, err := client.UserDetails(ctx); err != nil {
		log.Printf("Warning: failed to fetch user details: %v", err)
	} else if m, ok := details.(map[string]any); ok {
		for _, key := range []string{"account_id", "id", "user_id"} {
			switch v := m[key].(type) {
			case string:
				accountID = v
			case float64:
				accountID = fmt.Sprintf("%.0f", v)
			}
			if accountID != "" {
				break
			}
		}
	}

	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	creds := &hero.Credentials{
		RefreshToken: client.RefreshToken(),
		AccountID:    accountID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.SaveCredentials(ctx, creds); err != nil {
		log.Fatalf("Failed to save credentials: %v", err)
	}

	fmt.Println("✅ Login successful, refresh token stored")
	if accountID != "" {
		fmt.Printf("Account ID: %s\n", accountID)
	}
	fmt.Println("Start the service with: herowatch -config " + *configPath)
}
