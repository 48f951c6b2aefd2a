package pkgkeys

import (
	"os"
	"path/filepath"
)

// DefaultPubkeyPath and DefaultSeckeyPath mirror pkgar-keys' DEFAULT_PUBKEY
// and DEFAULT_SECKEY: $HOME/.pkgar/keys/id_ed25519{.pub,}.toml, falling
// back to a relative ./.pkgar/keys directory if $HOME cannot be resolved.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}

// DefaultPubkeyPath returns the default public key file location.
func DefaultPubkeyPath() string {
	return filepath.Join(homeDir(), ".pkgar", "keys", "id_ed25519.pub.toml")
}

// DefaultSeckeyPath returns the default secret key file location.
func DefaultSeckeyPath() string {
	return filepath.Join(homeDir(), ".pkgar", "keys", "id_ed25519.toml")
}
