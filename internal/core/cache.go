package core

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	cacheSize = 256
	// cacheLoadTimeout ogranicza wspólny odczyt, który nie dziedziczy anulowania
	cacheLoadTimeout = 30 * time.Second
)

// readCache to wygasający cache odczytów słownikowych.
// Równoległe chybienia dla tego samego klucza wykonują jeden odczyt z magazynu.
type readCache[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// newReadCache tworzy cache; ttl <= 0 wyłącza wygasanie
func newReadCache[V any](ttl time.Duration) *readCache[V] {
	return &readCache[V]{lru: expirable.NewLRU[string, V](cacheSize, nil, ttl)}
}

// get zwraca wartość z cache albo ładuje ją przez load.
// Odczyt jest wspólny dla czekających, więc anulowanie ctx jednego
// wywołującego przerywa tylko jego oczekiwanie.
func (c *readCache[V]) get(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheLoadTimeout)
		defer cancel()
		v, err := load(loadCtx)
		if err != nil {
			return v, err
		}
		c.lru.Add(key, v)
		return v, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *readCache[V]) purge() {
	c.lru.Purge()
}
