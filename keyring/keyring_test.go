package keyring

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestTokenStore_Keyring(t *testing.T) {
	keyring.MockInit()
	store := NewTokenStore("http://localhost:7070/", filepath.Join(t.TempDir(), "authtoken"))

	if _, err := store.Get(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty store error = %v, want ErrNotFound", err)
	}
	if err := store.Store("  abc123\n"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := store.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "abc123" {
		t.Errorf("Get() = %q, want %q", got, "abc123")
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestTokenStore_EntriesPerBackend(t *testing.T) {
	keyring.MockInit()
	a := NewTokenStore("http://localhost:7070", "")
	b := NewTokenStore("http://localhost:7071", "")

	if err := a.Store("token-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Get(); !errors.Is(err, ErrNotFound) {
		t.Errorf("token leaked between backends: %v", err)
	}
}

func TestTokenStore_ReadsDaemonTokenFile(t *testing.T) {
	keyring.MockInit()
	file := filepath.Join(t.TempDir(), "authtoken")
	if err := os.WriteFile(file, []byte("from-daemon\n"), 0600); err != nil {
		t.Fatal(err)
	}

	got, err := NewTokenStore("", file).Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "from-daemon" {
		t.Errorf("Get() = %q, want %q", got, "from-daemon")
	}
}

func TestTokenStore_FallsBackToFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: no session bus"))
	t.Cleanup(keyring.MockInit)

	file := filepath.Join(t.TempDir(), "sub", "authtoken")
	store := NewTokenStore("", file)

	if err := store.Store("xyz"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("token file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}

	got, err := store.Get()
	if err != nil || got != "xyz" {
		t.Errorf("Get() = %q, %v", got, err)
	}
	if err := store.Delete(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Delete() without keyring error = %v, want ErrUnavailable", err)
	}
}

func TestTokenStore_RejectsSymlinkedFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keyring"))
	t.Cleanup(keyring.MockInit)

	dir := t.TempDir()
	target := filepath.Join(dir, "elsewhere")
	link := filepath.Join(dir, "authtoken")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if err := NewTokenStore("", link).Store("xyz"); err == nil {
		t.Error("Store() should refuse a symlinked token file")
	}
}

func TestTokenStore_EmptyToken(t *testing.T) {
	keyring.MockInit()
	if err := NewTokenStore("", "").Store("   "); err == nil {
		t.Error("Store() should reject an empty token")
	}
}
