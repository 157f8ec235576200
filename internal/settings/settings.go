// Package settings keeps provider credentials in an encrypted local file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"market-lens/config"
	"market-lens/observability"
)

// ServiceName identifies a live data or narrative provider
type ServiceName string

const (
	ServiceAlphaVantage ServiceName = "alpha_vantage"
	ServiceAlpaca       ServiceName = "alpaca"
	ServiceBedrock      ServiceName = "bedrock"
)

// KnownServices lists every configurable provider in display order
func KnownServices() []ServiceName {
	return []ServiceName{ServiceAlphaVantage, ServiceAlpaca, ServiceBedrock}
}

func (s ServiceName) Valid() bool {
	switch s {
	case ServiceAlphaVantage, ServiceAlpaca, ServiceBedrock:
		return true
	}
	return false
}

var ErrUnknownService = errors.New("unknown service")

// Credential holds the secrets and overrides for one provider
type Credential struct {
	Service   ServiceName `json:"service"`
	APIKey    string      `json:"api_key,omitempty"`
	APISecret string      `json:"api_secret,omitempty"`
	BaseURL   string      `json:"base_url,omitempty"`
	Region    string      `json:"region,omitempty"`
	ModelID   string      `json:"model_id,omitempty"`
}

// Configured reports whether the credential is usable for its service
func (c *Credential) Configured() bool {
	if c == nil {
		return false
	}
	switch c.Service {
	case ServiceAlpaca:
		return c.APIKey != "" && c.APISecret != ""
	case ServiceBedrock:
		// AWS keys come from the default credential chain
		return c.Region != "" && c.ModelID != ""
	default:
		return c.APIKey != ""
	}
}

// MaskedCredential is a Credential safe to show to a client
type MaskedCredential struct {
	Service      ServiceName `json:"service"`
	DisplayName  string      `json:"display_name"`
	Description  string      `json:"description"`
	APIKey       string      `json:"api_key,omitempty"`
	APISecret    string      `json:"api_secret,omitempty"`
	BaseURL      string      `json:"base_url,omitempty"`
	Region       string      `json:"region,omitempty"`
	ModelID      string      `json:"model_id,omitempty"`
	IsConfigured bool        `json:"is_configured"`
}

type fileContents struct {
	Credentials map[ServiceName]*Credential `json:"credentials"`
}

// Store is the encrypted credential file. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	filePath string
	creds    map[ServiceName]*Credential
	crypto   *Crypto
}

// NewStore opens the credential file under dataDir (default ~/.market-lens).
// An unreadable file is logged and replaced by an empty store.
func NewStore(dataDir, passphrase string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".market-lens")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	s := &Store{
		filePath: filepath.Join(dataDir, "credentials.enc"),
		creds:    make(map[ServiceName]*Credential),
		crypto:   NewCrypto(passphrase),
	}
	if err := s.load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		observability.Warn("failed to load credentials, starting empty", "path", s.filePath, "error", err)
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	plain, err := s.crypto.Decrypt(data)
	if err != nil {
		return fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	var contents fileContents
	if err := json.Unmarshal(plain, &contents); err != nil {
		return fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if contents.Credentials != nil {
		s.creds = contents.Credentials
	}
	return nil
}

// saveLocked writes the file; callers hold mu
func (s *Store) saveLocked() error {
	data, err := json.Marshal(fileContents{Credentials: s.creds})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	sealed, err := s.crypto.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	if err := os.WriteFile(s.filePath, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

// Get returns a copy of the stored credential, or nil
func (s *Store) Get(service ServiceName) *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.creds[service]; ok {
		cp := *c
		return &cp
	}
	return nil
}

// Set stores cred and persists the file
func (s *Store) Set(cred Credential) error {
	if !cred.Service.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownService, cred.Service)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Service] = &cred
	return s.saveLocked()
}

func (s *Store) Delete(service ServiceName) error {
	if !service.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, service)
	return s.saveLocked()
}

func (s *Store) IsConfigured(service ServiceName) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds[service].Configured()
}

// Masked returns every known service with secrets masked
func (s *Store) Masked() []MaskedCredential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MaskedCredential, 0, len(KnownServices()))
	for _, svc := range KnownServices() {
		m := MaskedCredential{
			Service:     svc,
			DisplayName: DisplayName(svc),
			Description: Description(svc),
		}
		if c, ok := s.creds[svc]; ok {
			m.APIKey = maskString(c.APIKey)
			m.APISecret = maskString(c.APISecret)
			m.BaseURL = c.BaseURL
			m.Region = c.Region
			m.ModelID = c.ModelID
			m.IsConfigured = c.Configured()
		}
		out = append(out, m)
	}
	return out
}

// ApplyTo fills provider settings that cfg leaves empty. Environment and
// file configuration take precedence over stored credentials.
func (s *Store) ApplyTo(cfg *config.Config) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.creds[ServiceAlphaVantage]; ok {
		fill(&cfg.AlphaVantage.APIKey, c.APIKey)
		fill(&cfg.AlphaVantage.BaseURL, c.BaseURL)
	}
	if c, ok := s.creds[ServiceAlpaca]; ok {
		fill(&cfg.Alpaca.APIKey, c.APIKey)
		fill(&cfg.Alpaca.APISecret, c.APISecret)
		fill(&cfg.Alpaca.BaseURL, c.BaseURL)
	}
	if c, ok := s.creds[ServiceBedrock]; ok {
		fill(&cfg.Bedrock.Region, c.Region)
		fill(&cfg.Bedrock.ModelID, c.ModelID)
	}
}

func fill(dst *string, val string) {
	if *dst == "" {
		*dst = val
	}
}

// maskString keeps only the last four characters
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func DisplayName(service ServiceName) string {
	switch service {
	case ServiceAlphaVantage:
		return "Alpha Vantage"
	case ServiceAlpaca:
		return "Alpaca Markets"
	case ServiceBedrock:
		return "AWS Bedrock"
	default:
		return string(service)
	}
}

func Description(service ServiceName) string {
	switch service {
	case ServiceAlphaVantage:
		return "Live quotes and price history"
	case ServiceAlpaca:
		return "Equity bars and market clock"
	case ServiceBedrock:
		return "Narrative commentary on composed analyses"
	default:
		return ""
	}
}
