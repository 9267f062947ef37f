package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"anonrelay/config"
	"anonrelay/db"
	"anonrelay/store"

	"golang.org/x/term"
)

// openBackend builds the state backend selected by the config.
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return db.New(cfg.SQLitePath)
	case "redis":
		b := store.NewRedisBackend(cfg.RedisAddr, cfg.RedisKey)
		if err := b.Ping(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		return b, nil
	case "pebble":
		return store.NewPebbleBackend(cfg.PebblePath)
	default:
		return store.NewFileBackend(cfg.DataFile), nil
	}
}

func openCipher(key string) (*store.Cipher, error) {
	if key == "" {
		return nil, nil
	}
	return store.NewCipher(key)
}

// promptKey asks for the encryption passphrase with masked input.
// An empty answer disables encryption.
func promptKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, "Data encryption key (empty = no encryption): ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(string(key)), nil
}
