package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "file1.html", "text/html", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://file1.html" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	stored, ok := store.Get("file1.html")
	if !ok || string(stored) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	stored[0] = 'X'
	again, _ := store.Get("file1.html")
	if string(again) != "content" {
		t.Fatalf("Get() must return a copy, got %q", again)
	}
}

func TestBlobStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	if _, ok := store.Get("nope"); ok {
		t.Fatal("expected missing object")
	}
	if store.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", store.Len())
	}
}
