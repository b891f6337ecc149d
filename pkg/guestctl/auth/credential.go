package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// ExpiryMargin is the minimum remaining lifetime for a stored credential to be reused.
const ExpiryMargin = 60 * time.Second

type Credential struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func (c *Credential) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

// Usable reports whether at least ExpiryMargin of lifetime remains at now.
func (c *Credential) Usable(now time.Time) bool {
	return c.Expiry().Sub(now) >= ExpiryMargin
}

// UnmarshalJSON accepts fractional epoch seconds in expires_at and expires_in,
// as written by clients that stamp the expiry with a float clock reading.
func (c *Credential) UnmarshalJSON(data []byte) error {
	type plain Credential
	aux := struct {
		*plain
		ExpiresIn json.Number `json:"expires_in"`
		ExpiresAt json.Number `json:"expires_at"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	var err error
	if c.ExpiresIn, err = wholeSeconds(aux.ExpiresIn); err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	if c.ExpiresAt, err = wholeSeconds(aux.ExpiresAt); err != nil {
		return fmt.Errorf("expires_at: %w", err)
	}
	return nil
}

func wholeSeconds(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(math.Floor(f)), nil
}

func (c *Credential) OAuth2Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    tokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry(),
	}
}

// CredentialStore is a single slot holding at most one credential. It is not safe
// for concurrent writers.
type CredentialStore interface {
	// Load returns ErrNoCredential when the slot is empty and ErrMalformedStore
	// when its content cannot be decoded.
	Load() (*Credential, error)
	Save(cred *Credential) error
	Delete() error
	Location() string
}

// FileStore keeps the credential as a JSON document readable only by the owner.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Location() string {
	return s.Path
}

func (s *FileStore) Load() (*Credential, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	return decodeCredential(content, s.Path)
}

func (s *FileStore) Save(cred *Credential) error {
	content, err := encodeCredential(cred)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

func encodeCredential(cred *Credential) ([]byte, error) {
	if cred == nil || cred.AccessToken == "" {
		return nil, errors.New("refusing to store an empty credential")
	}
	content, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential: %w", err)
	}
	return content, nil
}

func decodeCredential(content []byte, location string) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal(content, &cred); err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrMalformedStore, location, err)
	}
	if cred.AccessToken == "" {
		return nil, fmt.Errorf("%w at %s: access_token missing", ErrMalformedStore, location)
	}
	return &cred, nil
}
