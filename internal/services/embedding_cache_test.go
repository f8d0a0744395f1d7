package services

import "testing"

func TestCachedEmbedderNilClientPassthrough(t *testing.T) {
	t.Parallel()
	inner := newFakeEmbedder()
	got := NewCachedEmbedder(testLogger(), inner, nil, "test-model")
	if got != Embedder(inner) {
		t.Fatalf("nil redis client must return the inner embedder unchanged")
	}
}
