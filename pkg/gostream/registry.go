package gostream

import (
	"fmt"
	"net/http"

	"github.com/alvarorichard/Gostream/internal/config"
	"github.com/alvarorichard/Gostream/internal/decrypt"
	"github.com/alvarorichard/Gostream/internal/resolver"
)

// buildRegistry creates one resolver per configured hoster. Hosters that
// name the same oracle share one decrypt client.
func buildRegistry(cfg config.Config, hc *http.Client) (*resolver.Registry, error) {
	var resOpts []resolver.Option
	var decOpts []decrypt.Option
	if hc != nil {
		resOpts = append(resOpts, resolver.WithHTTPClient(hc))
		decOpts = append(decOpts, decrypt.WithHTTPClient(hc))
	}

	oracles := make(map[string]*decrypt.Client, len(cfg.Oracles))
	oracleFor := func(name string) resolver.Decrypter {
		if name == "" {
			return nil
		}
		if c, ok := oracles[name]; ok {
			return c
		}
		o := cfg.Oracles[name]
		c := decrypt.New(decrypt.Endpoint{
			DecryptURL: o.DecryptURL,
			EncryptURL: o.EncryptURL,
			UserAgent:  o.UserAgent,
			Headers:    o.Headers,
		}, decOpts...)
		oracles[name] = c
		return c
	}

	registry := resolver.NewRegistry()
	for _, name := range cfg.HosterNames() {
		h := cfg.Hosters[name]

		var res resolver.Resolver
		switch h.Kind {
		case config.KindDirect:
			res = resolver.Direct{
				Referer:   h.Referer,
				UserAgent: h.UserAgent,
				Headers:   h.Headers,
			}
		case config.KindOracle:
			res = resolver.NewOracle(resolver.OracleConfig{
				BaseURL:        h.BaseURL,
				EncryptLocator: h.EncryptLocator,
				Referer:        h.Referer,
				UserAgent:      h.UserAgent,
				Headers:        h.Headers,
			}, oracleFor(h.Oracle), resOpts...)
		case config.KindEmbed:
			res = resolver.NewEmbedPage(resolver.EmbedConfig{
				Referer:    h.Referer,
				UserAgent:  h.UserAgent,
				Headers:    h.Headers,
				Attempts:   h.Attempts,
				RetryDelay: h.RetryDelay,
			}, oracleFor(h.Oracle), resOpts...)
		case config.KindObfuscated:
			res = resolver.NewObfuscated(resolver.ObfuscatedConfig{
				BaseURL:   h.BaseURL,
				Referer:   h.Referer,
				UserAgent: h.UserAgent,
				Headers:   h.Headers,
			}, resOpts...)
		default:
			return nil, fmt.Errorf("hoster %q: unknown kind %q", name, h.Kind)
		}

		registry.Register(name, res)
		if name == cfg.Fallback {
			registry.SetFallback(res)
		}
	}
	return registry, nil
}
