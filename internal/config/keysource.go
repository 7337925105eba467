package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrMissingAPIKey reports that no provider key is configured.
var ErrMissingAPIKey = errors.New("config: api key is not set")

// KeySource resolves the provider API key for one invocation.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// EnvKeySource reads the key from the environment on every call.
type EnvKeySource struct {
	name   string
	lookup LookupFunc
}

func NewEnvKeySource(name string, lookup LookupFunc) (*EnvKeySource, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("config: key variable name must not be empty")
	}
	if lookup == nil {
		return nil, errors.New("config: lookup must not be nil")
	}
	return &EnvKeySource{name: name, lookup: lookup}, nil
}

func (s *EnvKeySource) APIKey(_ context.Context) (string, error) {
	v, _ := s.lookup(s.name)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingAPIKey, s.name)
	}
	return v, nil
}

// SecretGetter is satisfied by *paramstore.Client.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// ParamStoreKeySource reads the key from SSM and keeps it for the life of the
// process. Failed lookups are not cached. Concurrent cold calls share one
// GetParameter round trip, and each caller stops waiting when its own context
// is done.
type ParamStoreKeySource struct {
	getter SecretGetter
	name   string
	group  singleflight.Group

	mu  sync.RWMutex
	key string
}

func NewParamStoreKeySource(getter SecretGetter, name string) (*ParamStoreKeySource, error) {
	if getter == nil {
		return nil, errors.New("config: secret getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("config: parameter name must not be empty")
	}
	return &ParamStoreKeySource{getter: getter, name: name}, nil
}

func (s *ParamStoreKeySource) APIKey(ctx context.Context) (string, error) {
	if key := s.cached(); key != "" {
		return key, nil
	}

	// The fetch outlives any single caller so a cancelled waiter does not
	// fail the others sharing it.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(s.name, func() (any, error) {
		if key := s.cached(); key != "" {
			return key, nil
		}
		key, err := s.getter.GetSecret(fetchCtx, s.name)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.key = key
		s.mu.Unlock()
		return key, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrMissingAPIKey, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", fmt.Errorf("%w: %w", ErrMissingAPIKey, res.Err)
		}
		return res.Val.(string), nil
	}
}

func (s *ParamStoreKeySource) cached() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}
