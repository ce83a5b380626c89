package disk

import (
	"bytes"
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/meigma/zipgrid/cache"
)

func randomBytes(seed uint64, n int) []byte {
	r := rand.New(rand.NewPCG(seed, seed))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(r.UintN(256))
	}
	return b
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	content := bytes.Repeat([]byte(`{"941":{"Z":[],"C":[]}}`), 200)
	key := cache.Key("scope", "z/9/94.json")

	if err := c.Put(ctx, key, content); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(ctx, key)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Get() content = %q, want %q", got, content)
	}

	path := filepath.Join(dir, key[:defaultShardPrefixLen], key)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
	if info.Size() >= int64(len(content)) {
		t.Fatalf("stored size = %d, want compressed below %d", info.Size(), len(content))
	}
	if c.SizeBytes() != info.Size() {
		t.Fatalf("SizeBytes() = %d, want %d", c.SizeBytes(), info.Size())
	}
}

func TestCacheMiss(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := c.Get(context.Background(), cache.Key("", "missing")); ok {
		t.Fatal("Get() ok = true, want false")
	}
}

func TestCacheInvalidKey(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"", "../etc/passwd", "ABCDEF", "z/root.json"} {
		if err := c.Put(context.Background(), key, []byte("x")); err == nil {
			t.Errorf("Put(%q) error = nil, want error", key)
		}
		if _, ok := c.Get(context.Background(), key); ok {
			t.Errorf("Get(%q) ok = true, want false", key)
		}
	}
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := cache.Key("", "flat")
	if err := c.Put(context.Background(), key, []byte("flat")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	path := filepath.Join(dir, key)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := cache.Key("", "corrupt")
	path := filepath.Join(dir, key[:defaultShardPrefixLen], key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not zstd"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get(context.Background(), key); ok {
		t.Fatal("Get() ok = true, want false")
	}
}

func TestCacheMaxBytes(t *testing.T) {
	t.Parallel()

	const limit = 2500
	c, err := New(t.TempDir(), WithMaxBytes(limit))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	keys := make([]string, 0, 4)
	for i := range 4 {
		key := cache.Key("", string(rune('a'+i)))
		keys = append(keys, key)
		if err := c.Put(ctx, key, randomBytes(uint64(i+1), 1000)); err != nil {
			t.Fatalf("Put(%d) error = %v", i, err)
		}
		if c.SizeBytes() > limit {
			t.Fatalf("SizeBytes() = %d after put %d, want <= %d", c.SizeBytes(), i, limit)
		}
	}

	hits := 0
	for _, key := range keys {
		if _, ok := c.Get(ctx, key); ok {
			hits++
		}
	}
	if hits != 2 {
		t.Fatalf("cached entries = %d, want 2", hits)
	}
}

func TestCacheSkipsOversizedEntry(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir(), WithMaxBytes(100))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := cache.Key("", "big")
	if err := c.Put(context.Background(), key, randomBytes(7, 1000)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := c.Get(context.Background(), key); ok {
		t.Fatal("Get() ok = true, want false")
	}
	if c.SizeBytes() != 0 {
		t.Fatalf("SizeBytes() = %d, want 0", c.SizeBytes())
	}
}

func TestCacheReopenRestoresSize(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Put(context.Background(), cache.Key("", "a"), randomBytes(1, 512)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if reopened.SizeBytes() != c.SizeBytes() {
		t.Fatalf("SizeBytes() = %d, want %d", reopened.SizeBytes(), c.SizeBytes())
	}
}

func TestCacheDeleteAndPrune(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	a, b := cache.Key("", "a"), cache.Key("", "b")
	for _, key := range []string{a, b} {
		if err := c.Put(ctx, key, randomBytes(3, 256)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	if err := c.Delete(a); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(a); err != nil {
		t.Fatalf("Delete() twice error = %v", err)
	}
	if _, ok := c.Get(ctx, a); ok {
		t.Fatal("Get() after Delete ok = true, want false")
	}

	freed, err := c.Prune(0)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if freed == 0 || c.SizeBytes() != 0 {
		t.Fatalf("Prune() freed = %d, SizeBytes() = %d", freed, c.SizeBytes())
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
	if _, err := New(t.TempDir(), WithShardPrefixLen(-1)); err == nil {
		t.Fatal("New() with negative shard prefix error = nil, want error")
	}
	if _, err := New(t.TempDir(), WithMaxBytes(-1)); err == nil {
		t.Fatal("New() with negative max bytes error = nil, want error")
	}
}
