package storage

import (
	"context"
	"testing"
)

func TestNewStoreMemory(t *testing.T) {
	store, err := NewStore("memory", "", nil)
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	if store == nil {
		t.Fatal("expected non-nil store")
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close memory store: %v", err)
	}
}

func TestNewStoreBadgerInMemory(t *testing.T) {
	store, err := NewStore("badger", "", nil)
	if err != nil {
		t.Fatalf("new badger store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close badger store: %v", err)
	}
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "", nil)
	if err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestDefaultStorePath(t *testing.T) {
	if DefaultStorePath("memory") != "" {
		t.Fatal("memory store should not need a path")
	}
	if DefaultStorePath(DefaultStoreKind()) == "" {
		t.Fatalf("default store kind %s needs a default path", DefaultStoreKind())
	}
}
