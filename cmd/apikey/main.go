// Command apikey mints an API key for an organization. The raw key is printed
// once; only its bcrypt hash is stored.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/photon/internal/api/middleware"
	"github.com/kiranshivaraju/photon/internal/config"
	"github.com/kiranshivaraju/photon/internal/store"
	"github.com/kiranshivaraju/photon/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefix = "ph_"

// KeyCreator persists a new API key.
type KeyCreator interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	orgFlag := flag.String("org", "", "organization id (uuid)")
	name := flag.String("name", "default", "key name")
	scopes := flag.String("scopes", "jobs", "comma-separated scopes, e.g. jobs,admin")
	flag.Parse()

	if err := run(*orgFlag, *name, *scopes); err != nil {
		slog.Error("mint api key failed", "error", err)
		os.Exit(1)
	}
}

func run(orgFlag, name, scopes string) error {
	orgID, err := uuid.Parse(orgFlag)
	if err != nil {
		return fmt.Errorf("invalid -org: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	raw, err := mint(ctx, store.NewPostgresStore(pool), orgID, name, splitScopes(scopes))
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

// mint generates a key, stores its hash and returns the raw value.
func mint(ctx context.Context, kc KeyCreator, orgID uuid.UUID, name string, scopes []string) (string, error) {
	if len(scopes) == 0 {
		return "", errors.New("at least one scope is required")
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	raw := keyPrefix + hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash key: %w", err)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           name,
		KeyHash:        string(hash),
		KeyPrefix:      raw[:mw.KeyPrefixLen],
		Scopes:         scopes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := kc.CreateAPIKey(ctx, key); err != nil {
		return "", fmt.Errorf("store key: %w", err)
	}
	return raw, nil
}

func splitScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
