package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"

	"github.com/nhle/lms-client/internal/model"
)

const (
	serviceName = "lms"
	sessionKey  = "session"
)

// ErrNoToken is returned by Token when nothing is persisted.
var ErrNoToken = errors.New("no persisted token")

// Credentials is the persisted pair of bearer token and the user it was
// issued to. Both live in a single keyring item so they are written
// together or not at all.
type Credentials struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Store is the token store backed by the system keyring. Reads are served
// from memory after the first load.
type Store struct {
	ring keyring.Keyring

	mu     sync.Mutex
	loaded bool
	cached Credentials
	ok     bool
}

// openKeyring returns a configured keyring instance.
func openKeyring(cfg model.CredentialConfig) (keyring.Keyring, error) {
	backends := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	}
	if cfg.Backend == "file" {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          backends,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("lms-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Open creates a Store over the keyring selected by cfg.
func Open(cfg model.CredentialConfig) (*Store, error) {
	ring, err := openKeyring(cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(ring), nil
}

// NewStore creates a Store over an existing keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Save persists token and user together. An empty token is rejected.
func (s *Store) Save(token string, user model.User) error {
	if token == "" {
		return errors.New("saving credentials: empty token")
	}

	creds := Credentials{Token: token, User: user}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.ring.Set(keyring.Item{
		Key:   sessionKey,
		Data:  data,
		Label: "LMS session",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", sessionKey, err)
	}

	s.loaded, s.cached, s.ok = true, creds, true
	return nil
}

// Read returns the persisted credentials. Missing, unreadable, or corrupted
// data all read as empty.
func (s *Store) Read() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		s.cached, s.ok = s.load()
		s.loaded = true
	}
	return s.cached, s.ok
}

func (s *Store) load() (Credentials, bool) {
	item, err := s.ring.Get(sessionKey)
	if err != nil {
		return Credentials{}, false
	}

	var creds Credentials
	if err := json.Unmarshal(item.Data, &creds); err != nil {
		return Credentials{}, false
	}
	if creds.Token == "" {
		return Credentials{}, false
	}
	return creds, true
}

// Clear removes the persisted credentials. Clearing an empty store is not
// an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ring.Remove(sessionKey)
	if err != nil &&
		!errors.Is(err, keyring.ErrKeyNotFound) &&
		!errors.Is(err, os.ErrNotExist) {
		// The keyring still holds the token; keep the cache in step with it.
		return fmt.Errorf("deleting credential %q: %w", sessionKey, err)
	}
	s.loaded, s.cached, s.ok = true, Credentials{}, false
	return nil
}

// Token implements oauth2.TokenSource over the persisted bearer token.
func (s *Store) Token() (*oauth2.Token, error) {
	creds, ok := s.Read()
	if !ok {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"}, nil
}
