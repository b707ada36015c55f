// Package urn implements the opaque typed identifiers used throughout the
// connector: process, message, offer, agreement, participant and callback
// ids. Every URN is rendered as urn:<ns>:<uuid> and compares equal only to
// another URN of the same namespace carrying the same bytes.
package urn

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Namespace discriminates the domain a URN belongs to. Two URNs minted under
// different namespaces never compare equal, even if their UUIDs collide.
type Namespace string

const (
	NamespaceProcess     Namespace = "process"
	NamespaceMessage     Namespace = "message"
	NamespaceOffer       Namespace = "offer"
	NamespaceAgreement   Namespace = "agreement"
	NamespaceParticipant Namespace = "participant"
	NamespaceCallback    Namespace = "callback"
	NamespaceSubscriber  Namespace = "subscription"
)

// URN is a 128-bit opaque identifier rendered as urn:<ns>:<uuid>. The zero
// value is not a valid URN; use New or Parse to obtain one.
type URN struct {
	ns Namespace
	id uuid.UUID
}

// New mints a fresh, random URN in the given namespace.
func New(ns Namespace) URN {
	return URN{ns: ns, id: uuid.Must(uuid.NewRandomFromReader(rand.Reader))}
}

// Parse decodes a URN from its wire form "urn:<ns>:<uuid>".
func Parse(s string) (URN, error) {
	var parts = strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "urn" {
		return URN{}, fmt.Errorf("urn: malformed identifier %q", s)
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return URN{}, fmt.Errorf("urn: malformed uuid in %q: %w", s, err)
	}
	return URN{ns: Namespace(parts[1]), id: id}, nil
}

// ParseInNamespace decodes a URN and additionally requires it belong to ns.
func ParseInNamespace(s string, ns Namespace) (URN, error) {
	var parsed, err = Parse(s)
	if err != nil {
		return URN{}, err
	}
	if parsed.ns != ns {
		return URN{}, fmt.Errorf("urn: expected namespace %q but %q has namespace %q", ns, s, parsed.ns)
	}
	return parsed, nil
}

// IsZero reports whether this is the unset URN value.
func (u URN) IsZero() bool { return u.id == uuid.Nil && u.ns == "" }

// Namespace returns the URN's namespace.
func (u URN) Namespace() Namespace { return u.ns }

// String renders the URN in wire form.
func (u URN) String() string {
	if u.IsZero() {
		return ""
	}
	return fmt.Sprintf("urn:%s:%s", u.ns, u.id)
}

// Equal reports byte-exact equality, including namespace.
func (u URN) Equal(other URN) bool {
	return u.ns == other.ns && u.id == other.id
}

func (u URN) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

func (u *URN) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*u = URN{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
