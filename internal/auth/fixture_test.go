package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol"
)

// softAuthenticator is a minimal software authenticator for tests. It holds a
// P-256 key pair and produces attestation ("none" format) and assertion
// responses that pass real verification.
type softAuthenticator struct {
	key    *ecdsa.PrivateKey
	credID []byte
	aaguid []byte
	rpID   string
	origin string
}

func newSoftAuthenticator(t *testing.T, rpID, origin string) *softAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	credID := make([]byte, 32)
	if _, err := rand.Read(credID); err != nil {
		t.Fatalf("credential id: %v", err)
	}
	return &softAuthenticator{
		key:    key,
		credID: credID,
		aaguid: make([]byte, 16),
		rpID:   rpID,
		origin: origin,
	}
}

type coseEC2Key struct {
	KeyType   int64  `cbor:"1,keyasint"`
	Algorithm int64  `cbor:"3,keyasint"`
	Curve     int64  `cbor:"-1,keyasint"`
	X         []byte `cbor:"-2,keyasint"`
	Y         []byte `cbor:"-3,keyasint"`
}

type attestationObject struct {
	AuthData []byte                 `cbor:"authData"`
	Fmt      string                 `cbor:"fmt"`
	AttStmt  map[string]interface{} `cbor:"attStmt"`
}

func (a *softAuthenticator) cosePublicKey(t *testing.T) []byte {
	t.Helper()
	pub := a.key.PublicKey
	key := coseEC2Key{
		KeyType:   2,  // EC2
		Algorithm: -7, // ES256
		Curve:     1,  // P-256
		X:         pub.X.FillBytes(make([]byte, 32)),
		Y:         pub.Y.FillBytes(make([]byte, 32)),
	}
	out, err := cbor.Marshal(key)
	if err != nil {
		t.Fatalf("marshal COSE key: %v", err)
	}
	return out
}

// registrationResponse builds the JSON body a browser would post back for the
// given creation options: authData with the attested credential, wrapped in a
// "none"-format attestation object.
func (a *softAuthenticator) registrationResponse(t *testing.T, options *protocol.CredentialCreation) []byte {
	t.Helper()
	return a.registrationResponseAt(t, options, a.origin)
}

func (a *softAuthenticator) registrationResponseAt(t *testing.T, options *protocol.CredentialCreation, origin string) []byte {
	t.Helper()

	rpIDHash := sha256.Sum256([]byte(a.rpID))
	var authData []byte
	authData = append(authData, rpIDHash[:]...)
	authData = append(authData, 0x45) // UP | UV | AT
	authData = append(authData, 0, 0, 0, 0)
	authData = append(authData, a.aaguid...)
	idLen := make([]byte, 2)
	binary.BigEndian.PutUint16(idLen, uint16(len(a.credID)))
	authData = append(authData, idLen...)
	authData = append(authData, a.credID...)
	authData = append(authData, a.cosePublicKey(t)...)

	attObj, err := cbor.Marshal(attestationObject{
		AuthData: authData,
		Fmt:      "none",
		AttStmt:  map[string]interface{}{},
	})
	if err != nil {
		t.Fatalf("marshal attestation object: %v", err)
	}

	clientData := a.clientDataJSON(t, "webauthn.create", []byte(options.Response.Challenge), origin)

	return a.envelope(t, map[string]interface{}{
		"clientDataJSON":    base64.RawURLEncoding.EncodeToString(clientData),
		"attestationObject": base64.RawURLEncoding.EncodeToString(attObj),
	})
}

// assertionResponse builds the JSON body for the given assertion options with
// the given signature counter, signed with the authenticator's key.
func (a *softAuthenticator) assertionResponse(t *testing.T, options *protocol.CredentialAssertion, counter uint32, userID []byte) []byte {
	t.Helper()
	return a.assertionResponseAt(t, options, counter, userID, a.origin, a.key)
}

func (a *softAuthenticator) assertionResponseAt(t *testing.T, options *protocol.CredentialAssertion, counter uint32, userID []byte, origin string, key *ecdsa.PrivateKey) []byte {
	t.Helper()

	rpIDHash := sha256.Sum256([]byte(a.rpID))
	var authData []byte
	authData = append(authData, rpIDHash[:]...)
	authData = append(authData, 0x05) // UP | UV
	count := make([]byte, 4)
	binary.BigEndian.PutUint32(count, counter)
	authData = append(authData, count...)

	clientData := a.clientDataJSON(t, "webauthn.get", []byte(options.Response.Challenge), origin)
	clientDataHash := sha256.Sum256(clientData)

	digest := sha256.Sum256(append(append([]byte{}, authData...), clientDataHash[:]...))
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}

	return a.envelope(t, map[string]interface{}{
		"clientDataJSON":    base64.RawURLEncoding.EncodeToString(clientData),
		"authenticatorData": base64.RawURLEncoding.EncodeToString(authData),
		"signature":         base64.RawURLEncoding.EncodeToString(sig),
		"userHandle":        base64.RawURLEncoding.EncodeToString(userID),
	})
}

func (a *softAuthenticator) clientDataJSON(t *testing.T, ceremony string, challenge []byte, origin string) []byte {
	t.Helper()
	out, err := json.Marshal(map[string]string{
		"type":      ceremony,
		"challenge": base64.RawURLEncoding.EncodeToString(challenge),
		"origin":    origin,
	})
	if err != nil {
		t.Fatalf("marshal client data: %v", err)
	}
	return out
}

func (a *softAuthenticator) envelope(t *testing.T, response map[string]interface{}) []byte {
	t.Helper()
	id := base64.RawURLEncoding.EncodeToString(a.credID)
	out, err := json.Marshal(map[string]interface{}{
		"id":       id,
		"rawId":    id,
		"type":     "public-key",
		"response": response,
	})
	if err != nil {
		t.Fatalf("marshal credential envelope: %v", err)
	}
	return out
}
