// Package secret keeps the typed credential in memory-locked storage until
// it is handed to the protocol, so it never sits in a plain Go string
// longer than the respond call itself.
package secret

import (
	"github.com/awnumar/memguard"
)

// String is a secure string wrapper that stores sensitive data in encrypted
// memory. The zero value is empty and valid.
type String struct {
	buf *memguard.LockedBuffer
}

// New creates a secure string from the given plaintext.
func New(plaintext string) *String {
	if plaintext == "" {
		return &String{}
	}
	return &String{buf: memguard.NewBufferFromBytes([]byte(plaintext))}
}

// Reveal returns the plaintext.
// The returned string is a copy living in regular memory; hand it straight
// to the consumer and let it go out of scope.
func (s *String) Reveal() string {
	if s == nil || s.buf == nil {
		return ""
	}
	return string(s.buf.Bytes())
}

// IsEmpty reports whether there is any stored data.
func (s *String) IsEmpty() bool {
	return s == nil || s.buf == nil || len(s.buf.Bytes()) == 0
}

// Destroy wipes and releases the protected buffer.
func (s *String) Destroy() {
	if s != nil && s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
}

// Purge wipes every live locked buffer in the process. Called on shutdown.
func Purge() {
	memguard.Purge()
}
