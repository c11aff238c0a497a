// Package openai implements the provider.openai module: a completion oracle
// backed by the OpenAI Chat Completions API or any server that speaks it.
package openai

import (
	"log/slog"
	"net/http"

	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/provider"
	"github.com/flemzord/sage/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Provider{})
}

// Compile-time interface guards.
var (
	_ provider.Provider      = (*Provider)(nil)
	_ provider.HealthChecker = (*Provider)(nil)
	_ core.Module            = (*Provider)(nil)
	_ core.Configurable      = (*Provider)(nil)
	_ core.Provisioner       = (*Provider)(nil)
	_ core.Validator         = (*Provider)(nil)
)

// ServiceName is the service key under which the provider registers itself.
const ServiceName = "provider.openai"

// Provider implements the OpenAI Chat Completions API as a sage provider module.
type Provider struct {
	config Config
	logger *slog.Logger
	client *http.Client
}

// ModuleInfo implements core.Module.
func (p *Provider) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.openai",
		New: func() core.Module { return &Provider{} },
	}
}

// Configure implements core.Configurable.
func (p *Provider) Configure(node *yaml.Node) error {
	if err := node.Decode(&p.config); err != nil {
		return err
	}
	p.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (p *Provider) Provision(ctx *core.AppContext) error {
	p.config.defaults()
	p.logger = ctx.Logger

	// ResponseHeaderTimeout bounds the wait for the oracle without putting a
	// hard deadline on reading the body; callers add their own deadline.
	p.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: p.config.parsedTimeout(),
		},
	}

	if svc, ok := ctx.Service(security.ServiceName); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(p.config.APIKey)
		}
	}

	ctx.RegisterService(ServiceName, p)
	ctx.RegisterService(provider.ServiceName, provider.Provider(p))

	p.logger.Info("provider ready", "model", p.config.Model, "base_url", p.config.BaseURL)
	return nil
}

// Validate implements core.Validator.
func (p *Provider) Validate() error {
	return p.config.validate()
}
