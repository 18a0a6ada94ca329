package utils

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"golang.org/x/oauth2"
)

type HTTPClientConfig struct {
	Timeout        time.Duration
	KATimeout      time.Duration
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	Headers        map[string]string
	HighThreadMode bool // larger socket buffers for many connections
}

// HTTPClient applies the configured user agent and headers to every request.
type HTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func newTransport(cfg HTTPClientConfig) *http.Transport {
	transport := &http.Transport{
		IdleConnTimeout:     cfg.KATimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true,
	}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: cfg.KATimeout,
	}
	if cfg.HighThreadMode {
		dialer.Control = func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				setSocketOptions(fd)
			})
		}
	}
	transport.DialContext = dialer.DialContext
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return transport
}

func withDefaults(cfg HTTPClientConfig) HTTPClientConfig {
	if cfg.KATimeout == 0 {
		cfg.KATimeout = DefaultKATimeout
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	return cfg
}

// NewHTTPClient builds a client for ranged downloads. Timeout bounds a whole
// request including its body, so it stays unset unless configured.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	cfg = withDefaults(cfg)
	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg),
		},
		config: cfg,
	}
}

// NewOAuthHTTPClient is NewHTTPClient with an Authorization header taken
// from ts on every request.
func NewOAuthHTTPClient(cfg HTTPClientConfig, ts oauth2.TokenSource) *HTTPClient {
	cfg = withDefaults(cfg)
	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &oauth2.Transport{
				Source: ts,
				Base:   newTransport(cfg),
			},
		},
		config: cfg,
	}
}

// StdClient exposes the underlying client for SDKs that take an *http.Client.
func (c *HTTPClient) StdClient() *http.Client {
	return c.client
}

// OAuthContext carries the client for oauth2 token exchanges.
func (c *HTTPClient) OAuthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.client)
}

func (c *HTTPClient) SetHeader(key, value string) {
	c.config.Headers[key] = value
}

func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	switch c.config.UserAgent {
	case "":
		req.Header.Set("User-Agent", ToolUserAgent)
	case "randomize":
		req.Header.Set("User-Agent", GetRandomUserAgent())
	default:
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}
