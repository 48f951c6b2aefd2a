package pkgkeys

import (
	"bytes"
	"testing"
)

func TestGenerateKeypairRoundTrip(t *testing.T) {
	pkeyFile, skeyFile, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	if skeyFile.IsEncrypted() {
		t.Error("freshly generated key should be plaintext")
	}

	if _, err := skeyFile.Ed25519(); err != nil {
		t.Fatal(err)
	}
	pub, err := pkeyFile.PublicKey()
	if err != nil {
		t.Fatal(err)
	}
	derived, err := skeyFile.PublicKeyFile()
	if err != nil {
		t.Fatal(err)
	}
	derivedPub, err := derived.PublicKey()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pub, derivedPub) {
		t.Error("public key derived from secret key does not match the generated public key file")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	_, skeyFile, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	plainKey := skeyFile.SKey

	passwd := NewPasswd([]byte("correct horse battery staple"))
	if err := skeyFile.Encrypt(passwd); err != nil {
		t.Fatal(err)
	}
	if !skeyFile.IsEncrypted() {
		t.Fatal("SecretKeyFile should report encrypted after Encrypt")
	}
	if skeyFile.SKey == plainKey {
		t.Error("SKey did not change after Encrypt")
	}

	if _, err := skeyFile.Ed25519(); err != ErrEncrypted {
		t.Errorf("Ed25519 on an encrypted key: err = %v, want ErrEncrypted", err)
	}

	wrong := NewPasswd([]byte("wrong passphrase"))
	if err := skeyFile.Decrypt(wrong); err != ErrDecryptFailed {
		t.Errorf("Decrypt with wrong passphrase: err = %v, want ErrDecryptFailed", err)
	}
	// Decrypt must not have mutated SKey on a failed attempt.
	if !skeyFile.IsEncrypted() {
		t.Error("a failed Decrypt should leave the key encrypted")
	}

	right := NewPasswd([]byte("correct horse battery staple"))
	if err := skeyFile.Decrypt(right); err != nil {
		t.Fatal(err)
	}
	if skeyFile.SKey != plainKey {
		t.Error("decrypted SKey does not match the original plaintext")
	}
}

func TestEncryptWithEmptyPasswordIsNoOp(t *testing.T) {
	_, skeyFile, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	plainKey := skeyFile.SKey

	empty := NewPasswd(nil)
	if err := skeyFile.Encrypt(empty); err != nil {
		t.Fatal(err)
	}
	if skeyFile.IsEncrypted() {
		t.Error("Encrypt with an empty passphrase should leave the key in plaintext")
	}
	if skeyFile.SKey != plainKey {
		t.Error("Encrypt with an empty passphrase should not change SKey")
	}

	// Ed25519() should work immediately since the key was never encrypted.
	if _, err := skeyFile.Ed25519(); err != nil {
		t.Fatal(err)
	}
}

func TestDecryptPlaintextIsNoOp(t *testing.T) {
	_, skeyFile, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	plainKey := skeyFile.SKey

	if err := skeyFile.Decrypt(NewPasswd(nil)); err != nil {
		t.Fatal(err)
	}
	if skeyFile.SKey != plainKey {
		t.Error("Decrypt on a plaintext key should be a no-op")
	}
}

func TestDecryptEncryptedKeyWithEmptyPassphraseFails(t *testing.T) {
	_, skeyFile, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	if err := skeyFile.Encrypt(NewPasswd([]byte("s3cret"))); err != nil {
		t.Fatal(err)
	}
	if err := skeyFile.Decrypt(NewPasswd(nil)); err != ErrPassphraseRequired {
		t.Errorf("Decrypt with empty passphrase: err = %v, want ErrPassphraseRequired", err)
	}
}

func TestPasswdWipeZeroesBytes(t *testing.T) {
	buf := []byte("hunter2")
	p := NewPasswd(buf)
	for _, b := range buf {
		if b != 0 {
			t.Fatal("NewPasswd did not wipe the caller's buffer")
		}
	}
	p.Wipe()
	if !p.Empty() {
		t.Error("Passwd should report Empty after Wipe")
	}
}

func TestPasswdEqual(t *testing.T) {
	a := NewPasswd([]byte("same"))
	b := NewPasswd([]byte("same"))
	c := NewPasswd([]byte("different"))
	if !a.Equal(b) {
		t.Error("equal passphrases should compare equal")
	}
	if a.Equal(c) {
		t.Error("different passphrases should not compare equal")
	}
}

func TestPublicKeyFileRejectsWrongLength(t *testing.T) {
	f := &PublicKeyFile{PKey: "abcd"}
	if _, err := f.PublicKey(); err == nil {
		t.Error("PublicKey with a too-short hex field: expected an error, got nil")
	}
}
