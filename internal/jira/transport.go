package jira

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"jira_bridge/internal/config"
	"jira_bridge/internal/logger"
)

// apiVersionTransport pins requests to the v2 REST family. Server 6.x has no
// /rest/api/3 endpoints, so every v3 path is rewritten before it leaves the
// client.
type apiVersionTransport struct {
	base http.RoundTripper
}

func (t *apiVersionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if strings.Contains(req.URL.Path, "/rest/api/3/") {
		// Clone before mutating; RoundTrippers must not modify the caller's
		// request.
		clone := req.Clone(req.Context())
		clone.URL.Path = strings.Replace(clone.URL.Path, "/rest/api/3/", "/rest/api/2/", 1)
		if clone.URL.RawPath != "" {
			clone.URL.RawPath = strings.Replace(clone.URL.RawPath, "/rest/api/3/", "/rest/api/2/", 1)
		}
		logger.GetLogger().Debug("normalizing API path",
			zap.String("from", req.URL.Path),
			zap.String("to", clone.URL.Path))
		req = clone
	}
	return t.base.RoundTrip(req)
}

// headerTransport applies configured custom headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for name, value := range t.headers {
		clone.Header.Set(name, value)
	}
	return t.base.RoundTrip(clone)
}

// buildTransport assembles the HTTP transport chain from the TLS settings,
// custom headers, and the API version pin.
func buildTransport(cfg *config.Config) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()

	tlsConfig := &tls.Config{}
	switch {
	case cfg.TLSInsecure || !cfg.SSLVerify:
		tlsConfig.InsecureSkipVerify = true
		logger.GetLogger().Warn("TLS verification disabled; use only in testing environments")
	case cfg.CAFile != "":
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			logger.GetLogger().Warn("CA file does not exist, falling back to default verification",
				zap.String("ca_file", cfg.CAFile))
			break
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA file %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
		logger.GetLogger().Info("using custom CA bundle", zap.String("ca_file", cfg.CAFile))
	}
	base.TLSClientConfig = tlsConfig

	var rt http.RoundTripper = base
	if cfg.IsServer6x() {
		rt = &apiVersionTransport{base: rt}
	}
	if len(cfg.CustomHeaders) > 0 {
		rt = &headerTransport{base: rt, headers: cfg.CustomHeaders}
	}
	return rt, nil
}
