package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config holds the Vault connection settings.
type Config struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// Credentials holds the gateway login for one brokerage account.
type Credentials struct {
	Account  string `json:"account"`
	Username string `json:"username"`
	Password string `json:"password"`
	IsPaper  bool   `json:"is_paper"`
}

// Client wraps the HashiCorp Vault client for brokerage credential storage.
// With Vault disabled it degrades to an in-memory store so a development
// desk can run without a Vault deployment.
type Client struct {
	client       *api.Client
	config       Config
	mu           sync.RWMutex
	cache        map[string]*Credentials
	cacheEnabled bool
}

// NewClient creates a new Vault client.
func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]*Credentials),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]*Credentials),
		cacheEnabled: true,
	}, nil
}

// StoreCredentials stores gateway credentials for an account in Vault.
func (c *Client) StoreCredentials(ctx context.Context, creds Credentials) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[c.cacheKey(creds.Account, creds.IsPaper)] = &creds
		c.mu.Unlock()
		return nil
	}

	path := c.secretPath(creds.Account, creds.IsPaper)

	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"account":  creds.Account,
			"username": creds.Username,
			"password": creds.Password,
			"is_paper": creds.IsPaper,
		},
	}

	_, err := c.client.Logical().WriteWithContext(ctx, path, secretData)
	if err != nil {
		return fmt.Errorf("failed to store credentials in vault: %w", err)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[c.cacheKey(creds.Account, creds.IsPaper)] = &creds
		c.mu.Unlock()
	}

	return nil
}

// GetCredentials retrieves gateway credentials for an account from Vault.
func (c *Client) GetCredentials(ctx context.Context, account string, isPaper bool) (*Credentials, error) {
	if c.cacheEnabled {
		c.mu.RLock()
		if cached, ok := c.cache[c.cacheKey(account, isPaper)]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("credentials not found and vault is disabled")
	}

	path := c.secretPath(account, isPaper)

	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials from vault: %w", err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credentials not found")
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	creds := &Credentials{
		Account:  getString(data, "account"),
		Username: getString(data, "username"),
		Password: getString(data, "password"),
		IsPaper:  getBool(data, "is_paper"),
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[c.cacheKey(account, isPaper)] = creds
		c.mu.Unlock()
	}

	return creds, nil
}

// DeleteCredentials removes an account's credentials from Vault.
func (c *Client) DeleteCredentials(ctx context.Context, account string, isPaper bool) error {
	c.mu.Lock()
	delete(c.cache, c.cacheKey(account, isPaper))
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	path := c.metadataPath(account, isPaper)

	_, err := c.client.Logical().DeleteWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to delete credentials from vault: %w", err)
	}

	return nil
}

// ClearCache clears the in-memory cache.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*Credentials)
	c.mu.Unlock()
}

// SetCacheEnabled enables or disables caching.
func (c *Client) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	c.cacheEnabled = enabled
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection.
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

func (c *Client) secretPath(account string, isPaper bool) string {
	return fmt.Sprintf("%s/data/%s/%s_%s", c.config.MountPath, c.config.SecretPath, account, network(isPaper))
}

func (c *Client) metadataPath(account string, isPaper bool) string {
	return fmt.Sprintf("%s/metadata/%s/%s_%s", c.config.MountPath, c.config.SecretPath, account, network(isPaper))
}

func (c *Client) cacheKey(account string, isPaper bool) string {
	return fmt.Sprintf("%s_%s", account, network(isPaper))
}

func network(isPaper bool) string {
	if isPaper {
		return "paper"
	}
	return "live"
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getBool(data map[string]interface{}, key string) bool {
	if val, ok := data[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// NewMockClient creates a disabled client for testing.
func NewMockClient() *Client {
	return &Client{
		config:       Config{Enabled: false},
		cache:        make(map[string]*Credentials),
		cacheEnabled: true,
	}
}
