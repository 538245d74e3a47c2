package domain

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Credential is a registered passkey public key bound to one user.
// ID is the authenticator-assigned credential ID and is globally unique.
type Credential struct {
	ID              []byte
	UserID          string
	PublicKey       []byte
	AttestationType string
	AAGUID          []byte
	Transports      []string
	SignCount       uint32
	CreatedAt       time.Time
}

// WebAuthn converts the stored credential into the library representation
// used for assertion verification.
func (c *Credential) WebAuthn() webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

// FromWebAuthn builds a Credential for the given user from a freshly
// verified registration result.
func FromWebAuthn(userID string, wc *webauthn.Credential, at time.Time) *Credential {
	transports := make([]string, 0, len(wc.Transport))
	for _, t := range wc.Transport {
		transports = append(transports, string(t))
	}
	return &Credential{
		ID:              wc.ID,
		UserID:          userID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		AAGUID:          wc.Authenticator.AAGUID,
		Transports:      transports,
		SignCount:       wc.Authenticator.SignCount,
		CreatedAt:       at,
	}
}
