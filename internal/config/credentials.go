// ABOUTME: Persisted login state: bearer tokens, user id and a stable device id.
// ABOUTME: Stored as JSON with 0600 permissions; implements the remote token store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
)

type credentialsFile struct {
	Server       string `json:"server,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	DeviceID     string `json:"device_id"`
}

// Credentials is the on-disk login state. Every mutation is written through.
type Credentials struct {
	path string

	mu   sync.Mutex
	data credentialsFile
}

// CredentialsPath returns the path to the credentials file.
func CredentialsPath() string {
	return filepath.Join(ConfigDir(), "credentials.json")
}

// GenerateDeviceID creates a new unique device ID.
func GenerateDeviceID() string {
	return ulid.Make().String()
}

// LoadCredentials reads path (or the default path). A missing file yields
// empty credentials with a fresh device id.
func LoadCredentials(path string) (*Credentials, error) {
	if path == "" {
		path = CredentialsPath()
	}
	c := &Credentials{path: path}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read credentials: %w", err)
	default:
		if err := json.Unmarshal(data, &c.data); err != nil {
			return nil, fmt.Errorf("parse credentials %s: %w", path, err)
		}
	}
	if c.data.DeviceID == "" {
		c.data.DeviceID = GenerateDeviceID()
	}
	return c, nil
}

// save writes atomically through a temp file so a crash never leaves a torn file.
func (c *Credentials) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// Path is where the credentials live.
func (c *Credentials) Path() string {
	return c.path
}

func (c *Credentials) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.AccessToken
}

func (c *Credentials) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.RefreshToken
}

// SetTokens stores a new token pair.
func (c *Credentials) SetTokens(access, refresh string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.AccessToken, c.data.RefreshToken = access, refresh
	return c.save()
}

// ClearTokens drops the tokens and the user id. The device id is kept.
func (c *Credentials) ClearTokens() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.AccessToken, c.data.RefreshToken, c.data.UserID = "", "", ""
	return c.save()
}

// UserID is the id of the logged-in user, or "".
func (c *Credentials) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.UserID
}

// SetLogin records who is logged in against which server.
func (c *Credentials) SetLogin(server, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Server, c.data.UserID = server, userID
	return c.save()
}

// Server is the API root the tokens were issued by.
func (c *Credentials) Server() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Server
}

// DeviceID identifies this installation.
func (c *Credentials) DeviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.DeviceID
}

// LoggedIn reports whether both a token and a user id are present.
func (c *Credentials) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.AccessToken != "" && c.data.UserID != ""
}
