// Package anthropic implements the provider.anthropic module: the completion
// oracle backed by the Anthropic Messages API.
package anthropic

import (
	"errors"
	"log/slog"
	"net/http"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/flemzord/sage/internal/core"
	"github.com/flemzord/sage/internal/provider"
	"github.com/flemzord/sage/internal/security"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Anthropic{})
}

// ServiceName is the service key under which the provider registers itself.
const ServiceName = "provider.anthropic"

// Interface guards.
var (
	_ core.Module            = (*Anthropic)(nil)
	_ core.Configurable      = (*Anthropic)(nil)
	_ core.Provisioner       = (*Anthropic)(nil)
	_ core.Validator         = (*Anthropic)(nil)
	_ provider.Provider      = (*Anthropic)(nil)
	_ provider.HealthChecker = (*Anthropic)(nil)
)

// Anthropic is the provider.anthropic module.
type Anthropic struct {
	config Config
	client *sdkanthropic.Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (a *Anthropic) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "provider.anthropic",
		New: func() core.Module { return &Anthropic{} },
	}
}

// Configure implements core.Configurable.
func (a *Anthropic) Configure(node *yaml.Node) error {
	if err := node.Decode(&a.config); err != nil {
		return err
	}
	a.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (a *Anthropic) Provision(ctx *core.AppContext) error {
	a.config.defaults()
	a.logger = ctx.Logger

	if a.config.APIKey == "" {
		a.config.APIKey = os.Getenv(a.config.APIKeyEnv)
	}
	if svc, ok := ctx.Service(security.ServiceName); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(a.config.APIKey)
		}
	}

	a.client = newClient(a.config)

	ctx.RegisterService(ServiceName, a)
	ctx.RegisterService(provider.ServiceName, provider.Provider(a))

	a.logger.Info("provider ready", "model", a.config.Model)
	return nil
}

// newClient builds the SDK client. Retries are disabled: a failed turn is
// reported to the caller, who may resend it.
func newClient(cfg Config) *sdkanthropic.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := sdkanthropic.NewClient(opts...)
	return &client
}

// Validate implements core.Validator.
func (a *Anthropic) Validate() error {
	if err := a.config.validate(); err != nil {
		return err
	}
	if a.client == nil {
		return errors.New("provider.anthropic: client not initialized (Provision not called)")
	}
	return nil
}

// ModelName implements provider.Provider.
func (a *Anthropic) ModelName() string {
	return a.config.Model
}
