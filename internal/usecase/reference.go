package usecase

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	referencePrefix   = "PAY"
	referenceTokenLen = 8
	anonymousToken    = "ANON"
)

// ReferenceGenerator produces merchant references.
type ReferenceGenerator interface {
	Next(hint string) (string, error)
}

// ULIDReferences builds PAY-<TOKEN>-<ULID> references. The ULID uses monotonic
// crypto/rand entropy so two references minted in the same millisecond still
// differ and sort in creation order.
type ULIDReferences struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewULIDReferences() *ULIDReferences {
	return &ULIDReferences{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Next fails only when the entropy source does, including monotonic overflow
// within one millisecond.
func (g *ULIDReferences) Next(hint string) (string, error) {
	g.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	g.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("mint merchant reference: %w", err)
	}
	return referencePrefix + "-" + ReferenceToken(hint) + "-" + id.String(), nil
}

// ReferenceToken derives the correlation token embedded in a merchant
// reference: the lowercase ASCII alphanumerics of hint, cut to 8 characters and
// upper-cased. It is lossy, so different users can share a token.
func ReferenceToken(hint string) string {
	if t := hintToken(hint); t != "" {
		return t
	}
	return anonymousToken
}

// hintToken is ReferenceToken without the anonymous fallback; "" when hint has
// no usable characters.
func hintToken(hint string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(hint) {
		if b.Len() == referenceTokenLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// EmailLocalPart returns the part of an address before '@' (the whole input if
// there is none).
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
