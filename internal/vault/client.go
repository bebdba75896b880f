// Package vault resolves database credentials from HashiCorp Vault so
// targets can run without static passwords in the config file.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"

	"github.com/kebairia/dbshield/internal/config"
)

const (
	approleSecretIDPath = "auth/approle/role/%s/secret-id"
	approleLoginPath    = "auth/approle/login"
)

// ErrClientInit indicates failure to initialize the Vault API client.
var ErrClientInit = errors.New("vault client initialization failed")

// Option configures the client.
type Option func(*clientConfig)

type clientConfig struct {
	address  string
	token    string
	roleID   string
	roleName string
}

// WithAddress overrides the Vault address (default VAULT_ADDR).
func WithAddress(address string) Option {
	return func(c *clientConfig) {
		if address != "" {
			c.address = address
		}
	}
}

// WithToken sets a static token for authentication.
func WithToken(token string) Option {
	return func(c *clientConfig) {
		if token != "" {
			c.token = token
		}
	}
}

// WithAppRole enables AppRole login with the given role.
func WithAppRole(roleID, roleName string) Option {
	return func(c *clientConfig) {
		c.roleID = roleID
		c.roleName = roleName
	}
}

// Client wraps the Vault API client.
type Client struct {
	api *vault.Client
	cfg *clientConfig
}

// DynamicCredentials is a short-lived username/password pair issued by a
// Vault database secrets engine role.
type DynamicCredentials struct {
	Username string
	Password string
	TTL      time.Duration
}

// StaticConnection mirrors the connection fields stored in a KV secret.
type StaticConnection struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
}

// NewClient creates and initializes a Vault Client. AppRole login is
// performed when roleID and roleName are both set; otherwise a static
// token (from env or WithToken) is used.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		address: os.Getenv("VAULT_ADDR"),
		token:   os.Getenv("VAULT_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := vault.DefaultConfig()
	if cfg.address != "" {
		apiCfg.Address = cfg.address
	}
	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}

	client := &Client{api: api, cfg: cfg}
	if cfg.token != "" {
		client.api.SetToken(cfg.token)
	}
	if cfg.roleID != "" && cfg.roleName != "" {
		if err := client.loginAppRole(ctx); err != nil {
			return nil, fmt.Errorf("%w: approle login: %v", ErrClientInit, err)
		}
	}
	return client, nil
}

// loginAppRole performs AppRole login using the configured role.
func (c *Client) loginAppRole(ctx context.Context) error {
	path := fmt.Sprintf(approleSecretIDPath, c.cfg.roleName)
	resp, err := c.api.Logical().WriteWithContext(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("generate secret_id: %w", err)
	}
	sid, ok := resp.Data["secret_id"].(string)
	if !ok || sid == "" {
		return fmt.Errorf("no secret_id returned from %s", path)
	}

	loginData := map[string]any{
		"role_id":   c.cfg.roleID,
		"secret_id": sid,
	}
	loginResp, err := c.api.Logical().WriteWithContext(ctx, approleLoginPath, loginData)
	if err != nil {
		return fmt.Errorf("approle login request: %w", err)
	}
	if loginResp.Auth == nil || loginResp.Auth.ClientToken == "" {
		return fmt.Errorf("no token in login response")
	}
	c.api.SetToken(loginResp.Auth.ClientToken)
	return nil
}

// GetDynamicCredentials reads a username/password lease from the given
// database secrets role path.
func (c *Client) GetDynamicCredentials(ctx context.Context, role string) (DynamicCredentials, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, role)
	if err != nil {
		return DynamicCredentials{}, err
	}
	if secret == nil {
		return DynamicCredentials{}, fmt.Errorf("no data found at path: %s", role)
	}
	user, userOK := secret.Data["username"].(string)
	pass, passOK := secret.Data["password"].(string)
	if !userOK || !passOK {
		return DynamicCredentials{}, fmt.Errorf("invalid data format at path: %s", role)
	}
	return DynamicCredentials{
		Username: user,
		Password: pass,
		TTL:      time.Duration(secret.LeaseDuration) * time.Second,
	}, nil
}

// GetStaticConnection reads connection overrides from a KV secret path.
func (c *Client) GetStaticConnection(ctx context.Context, path string) (StaticConnection, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return StaticConnection{}, err
	}
	if secret == nil {
		return StaticConnection{}, fmt.Errorf("no data found at path: %s", path)
	}
	var static StaticConnection
	if err := mapstructure.Decode(secret.Data, &static); err != nil {
		return StaticConnection{}, fmt.Errorf("decode secret at %s: %w", path, err)
	}
	return static, nil
}

// Resolve implements executor.CredentialSource: when a target names a
// Vault role, its user and password are replaced by a fresh lease.
func (c *Client) Resolve(ctx context.Context, conn config.Connection) (config.Connection, error) {
	if conn.VaultRole == "" {
		return conn, nil
	}
	creds, err := c.GetDynamicCredentials(ctx, conn.VaultRole)
	if err != nil {
		return config.Connection{}, fmt.Errorf("vault read %q: %w", conn.VaultRole, err)
	}
	conn.User = creds.Username
	conn.Password = creds.Password
	return conn, nil
}
