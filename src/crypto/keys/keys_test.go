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

	if !reflect.DeepEqual(DumpPrivateKey(nKey), DumpPrivateKey(key)) {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := []byte(PrivateKeyHex(key))

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
	}

	for _, fm := range shouldErr {
		os.Remove(badKeyPath)
		os.WriteFile(badKeyPath, rawKey, fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || key file should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")
	os.WriteFile(goodKeyPath, rawKey, 0600)

	if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
		t.Fatalf("key file should not return error. Got %v", err)
	}
}

func TestLoadOrCreate(t *testing.T) {
	kf := NewSimpleKeyfile(filepath.Join(t.TempDir(), "sub", "priv_key"))

	key, created, err := LoadOrCreate(kf)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !created {
		t.Fatalf("first call should create a key")
	}

	again, created, err := LoadOrCreate(kf)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if created {
		t.Fatalf("second call should load the existing key")
	}
	if NodeID(&key.PublicKey) != NodeID(&again.PublicKey) {
		t.Fatalf("node ids differ")
	}
}

func TestSignatureBytes(t *testing.T) {
	privKey, _ := GenerateECDSAKey()
	pub := FromPublicKey(&privKey.PublicKey)

	data := []byte("J'aime mieux forger mon ame que la meubler")

	sig, err := SignBytes(privKey, data)
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 64 {
		t.Fatalf("signature should be 64 bytes, got %d", len(sig))
	}

	if err := VerifyBytes(pub, data, sig); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := VerifyBytes(pub, []byte("something else"), sig); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}

	other, _ := GenerateECDSAKey()
	if err := VerifyBytes(FromPublicKey(&other.PublicKey), data, sig); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestParsePrivateKey(t *testing.T) {
	if _, err := ParsePrivateKey(make([]byte, 32)); err == nil {
		t.Fatalf("zero key should be rejected")
	}
	if _, err := ParsePrivateKey(make([]byte, 10)); err == nil {
		t.Fatalf("short key should be rejected")
	}

	key, _ := GenerateECDSAKey()
	parsed, err := ParsePrivateKey(DumpPrivateKey(key))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if parsed.PublicKey.X.Cmp(key.PublicKey.X) != 0 {
		t.Fatalf("public keys differ")
	}
}

func TestPublicKeyHex(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	s := PublicKeyHex(&key.PublicKey)
	if s[:2] != "0X" {
		t.Fatalf("missing prefix: %s", s)
	}

	pub, err := ParsePublicKeyHex(s)
	if err != nil {
		t.Fatal(err)
	}
	if pub.X.Cmp(key.PublicKey.X) != 0 || pub.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatal("public key changed")
	}
	if NodeID(pub) != NodeID(&key.PublicKey) {
		t.Fatal("node id changed")
	}

	if _, err := ParsePublicKeyHex("0X0102"); err == nil {
		t.Fatal("short key accepted")
	}
}
