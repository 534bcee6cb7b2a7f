package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudflare/cloudflare-go"
	"golang.org/x/term"
)

// apiToken prefers CF_API_TOKEN and falls back to the key file.
func apiToken(cfg config, logger *log.Logger) (string, error) {
	if cfg.Token != "" {
		logger.Debug("using API token from environment")
		return cfg.Token, nil
	}
	if _, err := os.Stat(cfg.KeyFile); errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no API token: set CF_API_TOKEN or run \"gatewayip setup\" to create %s", cfg.KeyFile)
	}
	if err := verifyPermissions(cfg.KeyFile); err != nil {
		return "", err
	}
	key, err := readKey(cfg.KeyFile)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	logger.Debug("successfully read key from key file", "path", cfg.KeyFile)
	return key, nil
}

func runSetup(ctx context.Context, cfg config, logger *log.Logger) error {
	logger.Debug("running setup")
	if _, err := os.Stat(cfg.KeyFile); err == nil {
		return fmt.Errorf("key file \"%s\" already exists", cfg.KeyFile)
	}
	fmt.Printf("Enter Cloudflare API Token: \n")
	bytekey, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("runSetup: error reading from stdin: %w", err)
	}
	key := strings.TrimSpace(string(bytekey))

	if err := verifyAPIToken(ctx, key, cfg.Timeout, logger); err != nil {
		return err
	}

	logger.Info("creating key file", "path", cfg.KeyFile)
	f, err := os.OpenFile(cfg.KeyFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", cfg.KeyFile, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("unable to write \"%s\": %w", cfg.KeyFile, err)
	}
	logger.Info("token written", "path", cfg.KeyFile)
	return nil
}

func verifyAPIToken(ctx context.Context, key string, timeout time.Duration, logger *log.Logger) error {
	api, err := cloudflare.NewWithAPIToken(key, cloudflare.HTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	logger.Debug("verifying token...")
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be \"active\"; got \"%s\"", result.Status)
	}
	logger.Info("token verified successfully", "id", result.ID)
	return nil
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	key = strings.TrimSpace(string(keyb))
	if key == "" {
		return "", fmt.Errorf("key file \"%s\" is empty", path)
	}
	return key, nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	// The file might be provided by some secrets managing software as readonly.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}

	return nil
}
