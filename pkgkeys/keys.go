package pkgkeys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize  = 32
	nonceSize = 24

	// argon2 parameters approximating libsodium's
	// crypto_pwhash "interactive" limits the original implementation used.
	argon2Time    = 2
	argon2MemoryK = 64 * 1024 // KiB
	argon2Threads = 4
	argon2KeyLen  = 32
)

// PublicKeyFile is the on-disk TOML representation of an Ed25519 public
// key: a single hex-encoded field, matching pkgar-keys' PublicKeyFile.
type PublicKeyFile struct {
	PKey string `toml:"pkey"`
}

// NewPublicKeyFile wraps pub for serialization.
func NewPublicKeyFile(pub ed25519.PublicKey) *PublicKeyFile {
	return &PublicKeyFile{PKey: hex.EncodeToString(pub)}
}

// PublicKey decodes the file's hex-encoded key.
func (f *PublicKeyFile) PublicKey() (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(f.PKey)
	if err != nil {
		return nil, fmt.Errorf("pkgkeys: decoding public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("pkgkeys: public key is %d bytes, want %d: %w", len(b), ed25519.PublicKeySize, ErrInvalidKeyLength)
	}
	return ed25519.PublicKey(b), nil
}

// OpenPublicKeyFile parses a PublicKeyFile from a TOML file on disk.
func OpenPublicKeyFile(path string) (*PublicKeyFile, error) {
	var f PublicKeyFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("pkgkeys: opening %s: %w", path, err)
	}
	return &f, nil
}

// Write serializes f as TOML to w.
func (f *PublicKeyFile) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}

// Save writes f to path, creating or truncating it.
func (f *PublicKeyFile) Save(path string) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.Write(out)
}

// SecretKeyFile is the on-disk TOML representation of an Ed25519 secret
// key, optionally encrypted under a passphrase with Argon2id-derived
// XSalsa20-Poly1305 secretbox. SKey holds 64 hex-encoded bytes (the raw
// ed25519.PrivateKey) when plaintext, or 80 when encrypted (64-byte
// plaintext plus secretbox's 16-byte overhead).
//
// Grounded on pkgar-keys' SecretKeyFile/SKey, replacing its dryoc-backed
// crypto_secretbox/crypto_pwhash calls with golang.org/x/crypto's
// nacl/secretbox and argon2 — the same primitives under different names.
type SecretKeyFile struct {
	Salt  string `toml:"salt"`
	Nonce string `toml:"nonce"`
	SKey  string `toml:"skey"`
}

// GenerateKeypair creates a fresh Ed25519 keypair. The returned
// SecretKeyFile stores the secret key in plaintext; call Encrypt before
// Save if it should be passphrase-protected.
func GenerateKeypair() (*PublicKeyFile, *SecretKeyFile, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, nil, err
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, nil, err
	}

	skeyFile := &SecretKeyFile{
		Salt:  hex.EncodeToString(salt[:]),
		Nonce: hex.EncodeToString(nonce[:]),
		SKey:  hex.EncodeToString(priv),
	}
	return NewPublicKeyFile(pub), skeyFile, nil
}

// OpenSecretKeyFile parses a SecretKeyFile from a TOML file on disk.
func OpenSecretKeyFile(path string) (*SecretKeyFile, error) {
	var f SecretKeyFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("pkgkeys: opening %s: %w", path, err)
	}
	return &f, nil
}

// Write serializes f as TOML to w.
func (f *SecretKeyFile) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(f)
}

// Save writes f to path with 0600 permissions, creating or truncating it.
func (f *SecretKeyFile) Save(path string) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()
	return f.Write(out)
}

// IsEncrypted reports whether SKey currently holds ciphertext.
func (f *SecretKeyFile) IsEncrypted() bool {
	b, err := hex.DecodeString(f.SKey)
	return err == nil && len(b) == ed25519.PrivateKeySize+secretbox.Overhead
}

func (f *SecretKeyFile) saltArray() ([saltSize]byte, error) {
	var out [saltSize]byte
	b, err := hex.DecodeString(f.Salt)
	if err != nil || len(b) != saltSize {
		return out, fmt.Errorf("pkgkeys: invalid salt: %w", ErrInvalidKeyLength)
	}
	copy(out[:], b)
	return out, nil
}

func (f *SecretKeyFile) nonceArray() ([nonceSize]byte, error) {
	var out [nonceSize]byte
	b, err := hex.DecodeString(f.Nonce)
	if err != nil || len(b) != nonceSize {
		return out, fmt.Errorf("pkgkeys: invalid nonce: %w", ErrInvalidKeyLength)
	}
	copy(out[:], b)
	return out, nil
}

func deriveKey(passwd *Passwd, salt [saltSize]byte) *[32]byte {
	raw := argon2.IDKey(passwd.bytes, salt[:], argon2Time, argon2MemoryK, argon2Threads, argon2KeyLen)
	var key [32]byte
	copy(key[:], raw)
	return &key
}

// Encrypt seals the secret key under passwd, replacing SKey with
// ciphertext. An empty passwd is a no-op: the key is stored in plaintext,
// matching pkgar-keys' behavior for a blank passphrase. Encrypting an
// already-encrypted file is also a no-op.
func (f *SecretKeyFile) Encrypt(passwd *Passwd) error {
	if f.IsEncrypted() || passwd.Empty() {
		return nil
	}

	plain, err := hex.DecodeString(f.SKey)
	if err != nil || len(plain) != ed25519.PrivateKeySize {
		return fmt.Errorf("pkgkeys: invalid plaintext secret key: %w", ErrInvalidKeyLength)
	}
	salt, err := f.saltArray()
	if err != nil {
		return err
	}
	nonce, err := f.nonceArray()
	if err != nil {
		return err
	}

	key := deriveKey(passwd, salt)
	sealed := secretbox.Seal(nil, plain, &nonce, key)
	f.SKey = hex.EncodeToString(sealed)
	return nil
}

// Decrypt opens the secret key under passwd, replacing SKey with
// plaintext. Decrypting an already-plaintext file is a no-op.
func (f *SecretKeyFile) Decrypt(passwd *Passwd) error {
	if !f.IsEncrypted() {
		return nil
	}
	if passwd.Empty() {
		return ErrPassphraseRequired
	}

	sealed, err := hex.DecodeString(f.SKey)
	if err != nil {
		return fmt.Errorf("pkgkeys: invalid ciphertext: %w", ErrInvalidKeyLength)
	}
	salt, err := f.saltArray()
	if err != nil {
		return err
	}
	nonce, err := f.nonceArray()
	if err != nil {
		return err
	}

	key := deriveKey(passwd, salt)
	plain, ok := secretbox.Open(nil, sealed, &nonce, key)
	if !ok {
		return ErrDecryptFailed
	}
	f.SKey = hex.EncodeToString(plain)
	return nil
}

// Ed25519 returns the decrypted secret key. It fails with ErrEncrypted if
// the key has not been decrypted yet.
func (f *SecretKeyFile) Ed25519() (ed25519.PrivateKey, error) {
	if f.IsEncrypted() {
		return nil, ErrEncrypted
	}
	b, err := hex.DecodeString(f.SKey)
	if err != nil || len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("pkgkeys: invalid secret key: %w", ErrInvalidKeyLength)
	}
	return ed25519.PrivateKey(b), nil
}

// PublicKeyFile derives the corresponding public key file. It fails with
// ErrEncrypted if the secret key has not been decrypted yet.
func (f *SecretKeyFile) PublicKeyFile() (*PublicKeyFile, error) {
	priv, err := f.Ed25519()
	if err != nil {
		return nil, err
	}
	return NewPublicKeyFile(priv.Public().(ed25519.PublicKey)), nil
}

// GenKeypair prompts for a new passphrase on stdin (empty leaves the
// secret key in plaintext), generates a fresh keypair, and saves both
// files. Parent directories are not created.
func GenKeypair(w io.Writer, pkeyPath, skeyPath string) (*PublicKeyFile, *SecretKeyFile, error) {
	passwd, err := PromptNewPasswd(w)
	if err != nil {
		return nil, nil, err
	}
	defer passwd.Wipe()

	pkeyFile, skeyFile, err := GenerateKeypair()
	if err != nil {
		return nil, nil, err
	}
	if err := skeyFile.Encrypt(passwd); err != nil {
		return nil, nil, err
	}
	if err := skeyFile.Save(skeyPath); err != nil {
		return nil, nil, err
	}
	if err := pkeyFile.Save(pkeyPath); err != nil {
		return nil, nil, err
	}
	return pkeyFile, skeyFile, nil
}

// GetSKey opens the secret key file at path, prompting on stdin for a
// passphrase if it is encrypted.
func GetSKey(w io.Writer, skeyPath string) (*SecretKeyFile, error) {
	f, err := OpenSecretKeyFile(skeyPath)
	if err != nil {
		return nil, err
	}
	if f.IsEncrypted() {
		passwd, err := PromptPasswd(w, fmt.Sprintf("Passphrase for %s: ", skeyPath))
		if err != nil {
			return nil, err
		}
		defer passwd.Wipe()
		if err := f.Decrypt(passwd); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// ReEncrypt opens the secret key at path, decrypting it under its current
// passphrase if needed, then re-encrypts it under a newly prompted
// passphrase and saves it back.
func ReEncrypt(w io.Writer, skeyPath string) error {
	f, err := OpenSecretKeyFile(skeyPath)
	if err != nil {
		return err
	}
	if f.IsEncrypted() {
		oldPasswd, err := PromptPasswd(w, fmt.Sprintf("Old passphrase for %s: ", skeyPath))
		if err != nil {
			return err
		}
		defer oldPasswd.Wipe()
		if err := f.Decrypt(oldPasswd); err != nil {
			return err
		}
	}

	newPasswd, err := PromptNewPasswd(w)
	if err != nil {
		return err
	}
	defer newPasswd.Wipe()

	if err := f.Encrypt(newPasswd); err != nil {
		return err
	}
	return f.Save(skeyPath)
}
