package consul

import (
	"fmt"
	"log/slog"

	consulapi "github.com/hashicorp/consul/api"
)

// ServiceConfig contains configuration for service registration
type ServiceConfig struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Check   *HealthCheck
}

// HealthCheck defines an HTTP health check
type HealthCheck struct {
	HTTP     string
	Interval string
	Timeout  string
	// DeregisterAfter removes the service once the check has been critical this long.
	DeregisterAfter string
}

// ServiceRegistrar defines the interface for service registration
type ServiceRegistrar interface {
	Register(cfg *ServiceConfig) error
	Deregister(serviceID string) error
}

// Register registers a service with Consul
func (c *Client) Register(cfg *ServiceConfig) error {
	registration := &consulapi.AgentServiceRegistration{
		ID:      cfg.ID,
		Name:    cfg.Name,
		Address: cfg.Address,
		Port:    cfg.Port,
		Tags:    cfg.Tags,
	}

	if cfg.Check != nil {
		registration.Check = &consulapi.AgentServiceCheck{
			HTTP:                           cfg.Check.HTTP,
			Interval:                       cfg.Check.Interval,
			Timeout:                        cfg.Check.Timeout,
			DeregisterCriticalServiceAfter: cfg.Check.DeregisterAfter,
		}
	}

	if err := c.api.Agent().ServiceRegister(registration); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	return nil
}

// Deregister removes a service from Consul
func (c *Client) Deregister(serviceID string) error {
	if err := c.api.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

// HTTPService describes a taskhub binary that serves /health over HTTP.
func HTTPService(name, host string, port int, tags ...string) *ServiceConfig {
	return &ServiceConfig{
		ID:      fmt.Sprintf("%s-%s-%d", name, host, port),
		Name:    name,
		Address: host,
		Port:    port,
		Tags:    tags,
		Check: &HealthCheck{
			HTTP:            fmt.Sprintf("http://%s:%d/health", host, port),
			Interval:        "10s",
			Timeout:         "3s",
			DeregisterAfter: "1m",
		},
	}
}

// Announce registers cfg, replacing a stale registration with the same ID left
// by a crashed instance, and returns the matching deregistration func.
func Announce(r ServiceRegistrar, cfg *ServiceConfig, logger *slog.Logger) (func(), error) {
	_ = r.Deregister(cfg.ID)

	if err := r.Register(cfg); err != nil {
		return nil, err
	}
	logger.Info("Registered with Consul", "service_id", cfg.ID, "name", cfg.Name)

	return func() {
		if err := r.Deregister(cfg.ID); err != nil {
			logger.Warn("Failed to deregister from Consul", "service_id", cfg.ID, "error", err)
			return
		}
		logger.Info("Deregistered from Consul", "service_id", cfg.ID)
	}, nil
}
