package service

import (
	"context"
	"fmt"
	"sync"

	"storefront-checkout/internal/client"
)

// ClientKeyResolver resolves the hosted provider's publishable key with
// the precedence: environment configuration, then a locally cached
// value, then a one-time fetch from the provider.
type ClientKeyResolver struct {
	configured string
	client     client.HostedClient

	mu     sync.Mutex
	cached string
}

func NewClientKeyResolver(configured string, hostedClient client.HostedClient) *ClientKeyResolver {
	return &ClientKeyResolver{
		configured: configured,
		client:     hostedClient,
	}
}

func (r *ClientKeyResolver) PublishableKey(ctx context.Context) (string, error) {
	if r.configured != "" {
		return r.configured, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != "" {
		return r.cached, nil
	}

	key, err := r.client.PublishableKey(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch publishable key: %w", err)
	}
	r.cached = key
	return key, nil
}
