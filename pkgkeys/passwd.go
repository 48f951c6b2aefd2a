package pkgkeys

import (
	"crypto/subtle"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Passwd is a secure in-memory representation of a passphrase. The bytes
// it was constructed from are wiped as soon as they are copied in, and
// Wipe should be called as soon as the derived key material is no longer
// needed.
//
// Grounded on pkgar-keys' Passwd, trading seckey's guard-page allocator
// (unavailable outside the original's libsodium binding) for a best-effort
// zero-on-use discipline.
type Passwd struct {
	bytes []byte
}

// NewPasswd takes ownership of buf, zeroing it in place once copied.
func NewPasswd(buf []byte) *Passwd {
	p := &Passwd{bytes: append([]byte(nil), buf...)}
	for i := range buf {
		buf[i] = 0
	}
	return p
}

// Empty reports whether the passphrase has zero length, in which case the
// caller should treat the associated secret key as unencrypted.
func (p *Passwd) Empty() bool {
	return len(p.bytes) == 0
}

// Wipe zeroes the passphrase's backing bytes. Safe to call more than once.
func (p *Passwd) Wipe() {
	for i := range p.bytes {
		p.bytes[i] = 0
	}
	p.bytes = nil
}

// Equal reports whether two passphrases hold the same bytes, in constant
// time.
func (p *Passwd) Equal(other *Passwd) bool {
	return subtle.ConstantTimeCompare(p.bytes, other.bytes) == 1
}

// PromptPasswd writes prompt to w and reads a passphrase from standard
// input without echoing it.
func PromptPasswd(w io.Writer, prompt string) (*Passwd, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	buf, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, err
	}
	fmt.Fprintln(w)
	return NewPasswd(buf), nil
}

// PromptNewPasswd prompts for a new passphrase and a confirmation, failing
// with ErrPassphraseMismatch if they differ. An empty passphrase stores
// the secret key in plaintext.
func PromptNewPasswd(w io.Writer) (*Passwd, error) {
	passwd, err := PromptPasswd(w, "Please enter a new passphrase (leave empty to store the key in plaintext): ")
	if err != nil {
		return nil, err
	}
	confirm, err := PromptPasswd(w, "Please re-enter the passphrase: ")
	if err != nil {
		passwd.Wipe()
		return nil, err
	}
	if !passwd.Equal(confirm) {
		passwd.Wipe()
		confirm.Wipe()
		return nil, ErrPassphraseMismatch
	}
	confirm.Wipe()
	return passwd, nil
}
