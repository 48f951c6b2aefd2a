// Package pkgkeys manages the Ed25519 keypairs pkgar signs and verifies
// archives with: generating them, storing them as hex-encoded TOML, and
// optionally encrypting the secret key under a passphrase.
//
// Grounded on original_source/pkgar-keys/src/lib.rs, adapted from
// libsodium (dryoc) primitives to the Go standard ed25519 package plus
// golang.org/x/crypto's argon2 and nacl/secretbox.
package pkgkeys

import "errors"

var (
	// ErrEncrypted is returned when an operation needs a decrypted secret
	// key but the key file is still encrypted.
	ErrEncrypted = errors.New("pkgkeys: secret key is encrypted")

	// ErrNotEncrypted names a secret key that is already plaintext.
	// Decrypt treats that case as a no-op and returns nil; nothing in this
	// package returns ErrNotEncrypted.
	ErrNotEncrypted = errors.New("pkgkeys: secret key is not encrypted")

	// ErrPassphraseRequired is returned when decrypting an encrypted key
	// with an empty passphrase.
	ErrPassphraseRequired = errors.New("pkgkeys: passphrase required to decrypt this key")

	// ErrPassphraseMismatch is returned by PromptNewPasswd when the
	// confirmation does not match the original entry.
	ErrPassphraseMismatch = errors.New("pkgkeys: passphrases did not match")

	// ErrDecryptFailed is returned when secretbox authentication fails,
	// meaning the passphrase was wrong or the file is corrupt.
	ErrDecryptFailed = errors.New("pkgkeys: failed to decrypt secret key")

	// ErrInvalidKeyLength is returned when a hex-decoded key field is not
	// the length its role requires.
	ErrInvalidKeyLength = errors.New("pkgkeys: invalid key length")
)
