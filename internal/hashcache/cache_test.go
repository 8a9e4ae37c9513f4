package hashcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"meeple/internal/imagehash"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "hashes.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestPutGetRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	hash := imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 0x0123456789abcdef)
	digest := "aa11"
	if err := cache.Put(ctx, digest, hash); err != nil {
		t.Fatal(err)
	}

	got, ok, err := cache.Get(ctx, digest, imagehash.AlgorithmDHash, imagehash.DHashVersion)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Hex() != hash.Hex() || got.Algorithm != hash.Algorithm || got.Bits != 64 {
		t.Fatalf("round trip mutated hash: %+v vs %+v", got, hash)
	}
}

func TestGetMissesOnUnknownKeyDimensions(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	hash := imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 42)
	if err := cache.Put(ctx, "aa11", hash); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                       string
		digest, algorithm, version string
	}{
		{"different digest", "bb22", imagehash.AlgorithmDHash, imagehash.DHashVersion},
		{"different algorithm", "aa11", imagehash.AlgorithmBlockhash, imagehash.BlockhashVersion},
		{"different version", "aa11", imagehash.AlgorithmDHash, "2.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := cache.Get(context.Background(), tt.digest, tt.algorithm, tt.version)
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatal("expected miss")
			}
		})
	}
}

func TestPutReplacesExistingEntry(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	first := imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 1)
	second := imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 2)
	if err := cache.Put(ctx, "aa11", first); err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(ctx, "aa11", second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := cache.Get(ctx, "aa11", imagehash.AlgorithmDHash, imagehash.DHashVersion)
	if err != nil || !ok {
		t.Fatalf("hit expected, ok=%v err=%v", ok, err)
	}
	if got.Hex() != second.Hex() {
		t.Fatalf("replace failed: got %s", got.Hex())
	}

	stats, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Fatalf("entries = %d, want 1", stats.Entries)
	}
}

func TestDisabledCacheIsInert(t *testing.T) {
	cache, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()
	ctx := context.Background()

	if cache.Enabled() {
		t.Fatal("empty path must disable the cache")
	}
	hash := imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 7)
	if err := cache.Put(ctx, "aa11", hash); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cache.Get(ctx, "aa11", imagehash.AlgorithmDHash, imagehash.DHashVersion); err != nil || ok {
		t.Fatalf("disabled cache must always miss, ok=%v err=%v", ok, err)
	}
	if err := cache.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	stats, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Fatalf("disabled cache reported %d entries", stats.Entries)
	}
}

func TestSnapshotCountsPerAlgorithm(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	entries := []struct {
		digest string
		hash   imagehash.Hash
	}{
		{"d1", imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 1)},
		{"d2", imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 2)},
		{"d1", imagehash.NewHash(imagehash.AlgorithmBlockhash, imagehash.BlockhashVersion, 64, 3)},
	}
	for _, e := range entries {
		if err := cache.Put(ctx, e.digest, e.hash); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 3 {
		t.Fatalf("entries = %d, want 3", stats.Entries)
	}
	if stats.PerAlgorithm["dhash/"+imagehash.DHashVersion] != 2 {
		t.Fatalf("per-algorithm counts wrong: %+v", stats.PerAlgorithm)
	}
	if stats.PerAlgorithm["blockhash/"+imagehash.BlockhashVersion] != 1 {
		t.Fatalf("per-algorithm counts wrong: %+v", stats.PerAlgorithm)
	}
}

func TestClearEmptiesCache(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	hash := imagehash.NewHash(imagehash.AlgorithmDHash, imagehash.DHashVersion, 64, 9)
	if err := cache.Put(ctx, "aa11", hash); err != nil {
		t.Fatal(err)
	}
	if err := cache.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := cache.Get(ctx, "aa11", imagehash.AlgorithmDHash, imagehash.DHashVersion); err != nil || ok {
		t.Fatalf("expected miss after clear, ok=%v err=%v", ok, err)
	}
}

func TestCorruptRowIsTreatedAsMiss(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	_, err := cache.db.ExecContext(ctx,
		`INSERT INTO hashes (file_digest, algorithm, version, bits, value_hex, created_at)
		 VALUES ('aa11', 'dhash', '1.0.0', 64, 'nothex', '2026-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := cache.Get(ctx, "aa11", imagehash.AlgorithmDHash, imagehash.DHashVersion)
	if err != nil {
		t.Fatalf("corrupt row must degrade to a miss, got error %v", err)
	}
	if ok {
		t.Fatal("corrupt row served as a hit")
	}
}

func TestFileDigestTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.bin")
	if err := os.WriteFile(path, []byte("pixels"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := FileDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	again, err := FileDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Fatal("digest must be stable for unchanged content")
	}
	if len(first) != 64 {
		t.Fatalf("digest length = %d, want 64 hex chars", len(first))
	}

	if err := os.WriteFile(path, []byte("different pixels"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := FileDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if changed == first {
		t.Fatal("digest must change with content")
	}
}
