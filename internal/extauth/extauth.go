package extauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"taskboard/api/internal/logging"
)

// Identity is what the upstream auth provider asserts about a token holder.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

var (
	ErrTokenRejected = errors.New("provider rejected token")
	ErrUnavailable   = errors.New("auth provider unavailable")
)

// Verifier resolves provider-issued tokens into identities. Calls go
// through a circuit breaker so a flapping provider fails fast instead of
// stalling every login.
type Verifier struct {
	providerURL string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
}

func NewVerifier(providerURL string) *Verifier {
	return &Verifier{
		providerURL: providerURL,
		client:      &http.Client{Timeout: 5 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "auth-provider",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Logger.Warnf("circuit breaker %s changed from %s to %s", name, from.String(), to.String())
			},
		}),
	}
}

// Enabled reports whether an upstream provider is configured at all.
func (v *Verifier) Enabled() bool {
	return v.providerURL != ""
}

// Verify exchanges a provider token for the identity it represents.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	result, err := v.breaker.Execute(func() (any, error) {
		return v.verify(ctx, token)
	})
	if err != nil {
		if errors.Is(err, ErrTokenRejected) {
			return Identity{}, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Identity{}, ErrUnavailable
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result.(Identity), nil
}

func (v *Verifier) verify(ctx context.Context, token string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.providerURL+"/userinfo", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("call provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Identity{}, ErrTokenRejected
	case resp.StatusCode != http.StatusOK:
		return Identity{}, fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if identity.Subject == "" {
		return Identity{}, ErrTokenRejected
	}
	return identity, nil
}
