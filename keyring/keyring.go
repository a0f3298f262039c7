// Package keyring stores the token the backend daemon requires on every API
// call. It uses the system keyring when available and falls back to the
// token file the daemon writes at startup.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/yllada/vpn-panel/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "vpn-panel"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound    = common.ErrTokenNotFound
	ErrUnavailable = errors.New("keyring service unavailable")
)

var _ common.TokenStore = (*TokenStore)(nil)

// TokenStore keeps the API token of one backend.
type TokenStore struct {
	// user is the keyring entry name; one entry per backend URL.
	user      string
	tokenFile string

	mu            sync.Mutex
	keyringBroken bool
}

// NewTokenStore creates a store for the backend at backendURL. tokenFile is
// read when the keyring has no token and written when the keyring fails.
func NewTokenStore(backendURL, tokenFile string) *TokenStore {
	if backendURL == "" {
		backendURL = common.DefaultBackendURL
	}
	return &TokenStore{
		user:      "api-token:" + strings.TrimRight(backendURL, "/"),
		tokenFile: tokenFile,
	}
}

// DefaultTokenFile returns where the daemon leaves its token.
func DefaultTokenFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "leap", common.TokenFileName)
}

// Get returns the stored token.
func (s *TokenStore) Get() (string, error) {
	if !s.broken() {
		token, err := keyring.Get(serviceName, s.user)
		switch {
		case err == nil && token != "":
			return token, nil
		case err == nil, errors.Is(err, keyring.ErrNotFound):
		default:
			common.LogWarn("Keyring unavailable, reading token file: %v", err)
			s.markBroken()
		}
	}
	return s.readFile()
}

// Store saves token, preferring the system keyring.
func (s *TokenStore) Store(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cannot be empty")
	}

	if !s.broken() {
		err := keyring.Set(serviceName, s.user, token)
		if err == nil {
			return nil
		}
		common.LogWarn("Keyring unavailable, writing token file: %v", err)
		s.markBroken()
	}
	return s.writeFile(token)
}

// Delete removes the token from the keyring. The daemon's token file is
// left in place because the daemon owns it.
func (s *TokenStore) Delete() error {
	if s.broken() {
		return ErrUnavailable
	}
	err := keyring.Delete(serviceName, s.user)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *TokenStore) broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyringBroken
}

func (s *TokenStore) markBroken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyringBroken = true
}

func (s *TokenStore) readFile() (string, error) {
	if s.tokenFile == "" {
		return "", ErrNotFound
	}
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

func (s *TokenStore) writeFile(token string) error {
	if s.tokenFile == "" {
		return ErrUnavailable
	}
	// Security: refuse to follow a symlinked token file
	if info, err := os.Lstat(s.tokenFile); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("security error: token file is a symlink")
	}
	if err := os.MkdirAll(filepath.Dir(s.tokenFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.tokenFile, []byte(token+"\n"), 0600)
}
