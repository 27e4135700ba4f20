// Package consul registers taskhub processes with a Consul agent so health
// checks and service catalogs can see them. Registration is optional.
package consul

import (
	"errors"

	"taskhub/internal/config"

	consulapi "github.com/hashicorp/consul/api"
)

// ErrDisabled is returned by NewClient when no agent address is configured.
var ErrDisabled = errors.New("consul: no agent address configured")

// Client wraps the Consul API client
type Client struct {
	api *consulapi.Client
}

// NewClient creates a client for the configured agent. It returns ErrDisabled
// when cfg.Addr is empty.
func NewClient(cfg config.ConsulConfig) (*Client, error) {
	if cfg.Addr == "" {
		return nil, ErrDisabled
	}

	apiConfig := consulapi.DefaultConfig()
	apiConfig.Address = cfg.Addr
	if cfg.Token != "" {
		apiConfig.Token = cfg.Token
	}

	client, err := consulapi.NewClient(apiConfig)
	if err != nil {
		return nil, err
	}
	return &Client{api: client}, nil
}

// API returns the underlying Consul API client
func (c *Client) API() *consulapi.Client {
	return c.api
}
