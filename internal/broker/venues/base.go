package venues

import (
	"context"
	"fmt"
	"time"

	xhttp "TradeGate/pkg/http"
)

// Config is the shared per-venue configuration: connectors are stateless
// façades carrying only this.
type Config struct {
	Name    string        `yaml:"name"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Account string        `yaml:"account"`
	Mode    string        `yaml:"mode" default:"demo"` // demo|real
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

// restBase centralizes JSON request handling for venue connectors.
type restBase struct {
	cfg    Config
	client *xhttp.Client
}

func newRestBase(cfg Config) restBase {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Mode == "" {
		cfg.Mode = "demo"
	}
	return restBase{cfg: cfg, client: xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout))}
}

func (b *restBase) getJSON(ctx context.Context, path string, dest interface{}) error {
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     b.cfg.BaseURL + path,
		Headers: b.headers(),
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}

func (b *restBase) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.cfg.BaseURL + path,
		Headers: b.headers(),
		Body:    payload,
	}, dest)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

func (b *restBase) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if b.cfg.APIKey != "" {
		h["Authorization"] = "Bearer " + b.cfg.APIKey
	}
	return h
}
