package credential_test

import (
	"context"
	"errors"
	"testing"

	"github.com/raysh454/policyctl/internal/credential"
)

type failingStore struct{ credential.MemoryStore }

var errDiskGone = errors.New("disk gone")

func (*failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errDiskGone
}

func TestStoreProvider_AbsentAndPresent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := credential.NewMemoryStore()
	p := credential.NewStoreProvider(store)

	if _, ok, err := p.Credential(ctx); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, credential.Key, "abc123"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := p.Credential(ctx)
	if err != nil || !ok || v != "abc123" {
		t.Fatalf("Credential = %q %v %v", v, ok, err)
	}
}

func TestStoreProvider_EmptyValueIsAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := credential.NewMemoryStore()
	_ = store.Set(ctx, credential.Key, "")

	if _, ok, _ := credential.NewStoreProvider(store).Credential(ctx); ok {
		t.Fatal("empty stored value must read as absent")
	}
}

func TestStoreProvider_PropagatesReadError(t *testing.T) {
	t.Parallel()
	p := credential.NewStoreProvider(&failingStore{})
	_, _, err := p.Credential(context.Background())
	if !errors.Is(err, errDiskGone) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	t.Parallel()
	if _, ok, _ := credential.StaticProvider("").Credential(context.Background()); ok {
		t.Error("empty static provider must be absent")
	}
	v, ok, _ := credential.StaticProvider("k").Credential(context.Background())
	if !ok || v != "k" {
		t.Errorf("got %q %v", v, ok)
	}
}

func TestSave_TrimsValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := credential.NewMemoryStore()

	if err := credential.Save(ctx, store, "  abc123 \n"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if v, _, _ := store.Get(ctx, credential.Key); v != "abc123" {
		t.Errorf("expected trimmed value, got %q", v)
	}
}

func TestSave_BlankWritesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := credential.NewMemoryStore()
	_ = store.Set(ctx, credential.Key, "existing")

	err := credential.Save(ctx, store, "   ")
	if !errors.Is(err, credential.ErrEmptyCredential) {
		t.Fatalf("expected ErrEmptyCredential, got %v", err)
	}
	if v, _, _ := store.Get(ctx, credential.Key); v != "existing" {
		t.Errorf("blank save must not touch the stored key, got %q", v)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := credential.NewMemoryStore()
	_ = credential.Save(ctx, store, "abc123")

	if err := credential.Clear(ctx, store); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx, credential.Key); ok {
		t.Fatal("expected key removed")
	}
	if err := credential.Clear(ctx, store); err != nil {
		t.Fatalf("Clear on empty store: %v", err)
	}
}
