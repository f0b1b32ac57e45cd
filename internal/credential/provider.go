package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyCredential is returned by Save when the input is blank after trimming.
var ErrEmptyCredential = errors.New("credential: empty api key")

// Provider yields the current API key. ok is false when no key is stored.
type Provider interface {
	Credential(ctx context.Context) (value string, ok bool, err error)
}

// StoreProvider reads the key from a KeyValueStore on every call, so a save
// or clear is visible to the very next request.
type StoreProvider struct {
	Store KeyValueStore
}

func NewStoreProvider(store KeyValueStore) *StoreProvider {
	return &StoreProvider{Store: store}
}

func (p *StoreProvider) Credential(ctx context.Context) (string, bool, error) {
	v, ok, err := p.Store.Get(ctx, Key)
	if err != nil {
		return "", false, fmt.Errorf("read credential: %w", err)
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return v, true, nil
}

// StaticProvider always yields the same value; an empty value means absent.
type StaticProvider string

func (s StaticProvider) Credential(context.Context) (string, bool, error) {
	if s == "" {
		return "", false, nil
	}
	return string(s), true, nil
}

// Save trims value and stores it as the API key. A blank value writes nothing
// and returns ErrEmptyCredential.
func Save(ctx context.Context, store KeyValueStore, value string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return ErrEmptyCredential
	}
	if err := store.Set(ctx, Key, v); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Clear removes the stored API key.
func Clear(ctx context.Context, store KeyValueStore) error {
	if err := store.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
