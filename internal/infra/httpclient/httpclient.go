package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// URLValidator approves an outbound request target. The sandbox policy
// implements it; redirect hops go through the same check as initial URLs.
type URLValidator interface {
	ValidateURL(ctx context.Context, raw string) (*url.URL, error)
}

// New returns an http.Client configured for outbound requests.
//
// One pooled client is shared by every tool and by the oracle transport;
// the client carries no per-run state. Callers validate initial targets
// against the sandbox policy before issuing a request; the client itself
// re-validates every redirect hop, so an approved host cannot bounce the
// request to a blocked address.
func New(timeout time.Duration, validator URLValidator) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout:   timeout,
		Transport: transport(),
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after 10 redirects")
		}
		if validator != nil {
			if _, err := validator.ValidateURL(req.Context(), req.URL.String()); err != nil {
				return fmt.Errorf("redirect to %s blocked: %w", req.URL, err)
			}
		}
		return nil
	}
	return client
}

func transport() *http.Transport {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Transport{
			MaxIdleConns:        64,
			MaxIdleConnsPerHost: 8,
		}
	}
	t := base.Clone()
	t.MaxIdleConns = 64
	t.MaxIdleConnsPerHost = 8
	t.IdleConnTimeout = 90 * time.Second
	return t
}
