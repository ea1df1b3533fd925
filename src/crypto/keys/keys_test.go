package keys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if nKey.D.Cmp(key.D) != 0 {
		t.Fatalf("Keys do not match")
	}

	if Address(&nKey.PublicKey) != Address(&key.PublicKey) {
		t.Fatalf("Addresses do not match")
	}
}

func TestReadOrCreateKey(t *testing.T) {
	dir := t.TempDir()

	keyfile := NewSimpleKeyfile(filepath.Join(dir, "sub", "priv_key"))

	first, created, err := keyfile.ReadOrCreateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !created {
		t.Fatalf("first call should create a key")
	}

	second, created, err := keyfile.ReadOrCreateKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if created {
		t.Fatalf("second call should read the existing key")
	}
	if first.D.Cmp(second.D) != 0 {
		t.Fatalf("second call should return the same key")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := PrivateKeyHex(key)

	// random selection of permissions that should not be accepted.
	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
	}

	for i, fm := range shouldErr {
		badKeyPath := filepath.Join(dir, "priv_key_bad"+string(rune('a'+i)))
		if err := os.WriteFile(badKeyPath, []byte(rawKey), fm); err != nil {
			t.Fatal(err)
		}
		// WriteFile is subject to umask
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || key file should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")
	if err := os.WriteFile(goodKeyPath, []byte(rawKey), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
		t.Fatalf("key file should not return error. Got %v", err)
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	pub := ToPublicKey(FromPublicKey(&key.PublicKey))
	if pub == nil {
		t.Fatalf("ToPublicKey should decode an uncompressed point")
	}

	if !reflect.DeepEqual(FromPublicKey(pub), FromPublicKey(&key.PublicKey)) {
		t.Fatalf("public keys do not match")
	}

	parsed, err := ParsePrivateKey(DumpPrivateKey(key))
	if err != nil {
		t.Fatal(err)
	}
	if Address(&parsed.PublicKey) != Address(&key.PublicKey) {
		t.Fatalf("parsed key should derive the same address")
	}

	if _, err := ParsePrivateKey([]byte{1, 2, 3}); err == nil {
		t.Fatalf("short keys should be rejected")
	}
}
