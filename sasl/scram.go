// Package sasl implements the client side of SCRAM-SHA-256 (RFC 5802)
// authentication for the PostgreSQL wire protocol, invoked after the server
// answers Authentication with status AuthSASL.
package sasl

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/secure/precis"

	"pglue/errs"
)

// Mechanism is the only SASL mechanism this client advertises. Channel
// binding is never offered ("n" in the gs2 header): the wire protocol runs
// unencrypted (TLS is a spec Non-goal), so there is no channel to bind to.
const Mechanism = "SCRAM-SHA-256"

const gs2Header = "n,,"

// ScramClient drives one SCRAM-SHA-256 exchange. Create one per
// authentication attempt with NewClient; it is not reusable.
type ScramClient struct {
	password string

	clientNonce     string
	clientFirstBare string

	serverFirst    string
	saltedPassword []byte
	authMessage    string
}

// NewClient prepares a SCRAM client for the given password, applying
// SASLprep (RFC 4013's OpaqueString profile) the way the RFC requires
// before any of the password is hashed.
func NewClient(password string) (*ScramClient, error) {
	normalized, err := precis.OpaqueString.String(password)
	if err != nil {
		// RFC 5802 permits using the raw password when SASLprep fails.
		normalized = password
	}
	nonce, err := randomNonce(20)
	if err != nil {
		return nil, errs.NewWire("sasl", "generate nonce: %v", err)
	}
	return &ScramClient{password: normalized, clientNonce: nonce}, nil
}

func randomNonce(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// InitialResponse returns the SASLInitialResponse payload: the gs2 header
// plus "n=*,r=<nonce>".
func (s *ScramClient) InitialResponse() []byte {
	s.clientFirstBare = fmt.Sprintf("n=*,r=%s", s.clientNonce)
	return []byte(gs2Header + s.clientFirstBare)
}

// ContinueResponse consumes the server's first message (from
// AuthenticationSASLContinue) and returns the client's final message
// (SASLResponse payload) containing the computed proof.
func (s *ScramClient) ContinueResponse(serverFirst []byte) ([]byte, error) {
	s.serverFirst = string(serverFirst)
	fields, err := parseFields(s.serverFirst)
	if err != nil {
		return nil, err
	}

	serverNonce, ok := fields["r"]
	if !ok {
		return nil, errs.NewWire("sasl", "server-first-message missing nonce")
	}
	if !strings.HasPrefix(serverNonce, s.clientNonce) {
		return nil, errs.NewWire("sasl", "server nonce does not extend client nonce")
	}

	saltB64, ok := fields["s"]
	if !ok {
		return nil, errs.NewWire("sasl", "server-first-message missing salt")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, errs.NewWire("sasl", "decode salt: %v", err)
	}

	iterStr, ok := fields["i"]
	if !ok {
		return nil, errs.NewWire("sasl", "server-first-message missing iteration count")
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations <= 0 {
		return nil, errs.NewWire("sasl", "invalid iteration count %q", iterStr)
	}

	s.saltedPassword = pbkdf2.Key([]byte(s.password), salt, iterations, sha256.Size, sha256.New)

	channelBinding := base64.StdEncoding.EncodeToString([]byte(gs2Header))
	clientFinalWithoutProof := fmt.Sprintf("c=%s,r=%s", channelBinding, serverNonce)
	s.authMessage = strings.Join([]string{s.clientFirstBare, s.serverFirst, clientFinalWithoutProof}, ",")

	clientKey := hmacSHA256(s.saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)
	clientSignature := hmacSHA256(storedKey[:], []byte(s.authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	final := fmt.Sprintf("%s,p=%s", clientFinalWithoutProof, base64.StdEncoding.EncodeToString(clientProof))
	return []byte(final), nil
}

// VerifyFinal checks the server's ServerSignature (from
// AuthenticationSASLFinal) against the value this client computes
// independently, proving the server knew the same salted password.
func (s *ScramClient) VerifyFinal(serverFinal []byte) error {
	fields, err := parseFields(string(serverFinal))
	if err != nil {
		return err
	}
	vB64, ok := fields["v"]
	if !ok {
		return errs.NewWire("sasl", "server-final-message missing verifier")
	}
	got, err := base64.StdEncoding.DecodeString(vB64)
	if err != nil {
		return errs.NewWire("sasl", "decode server signature: %v", err)
	}

	serverKey := hmacSHA256(s.saltedPassword, []byte("Server Key"))
	want := hmacSHA256(serverKey, []byte(s.authMessage))
	if !hmac.Equal(got, want) {
		return errs.NewWire("sasl", "server signature mismatch")
	}
	return nil
}

func hmacSHA256(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// parseFields splits a SCRAM message of the form "a=x,b=y,..." into a map.
// Values may themselves contain '=' (base64), so split only on the first.
func parseFields(msg string) (map[string]string, error) {
	fields := map[string]string{}
	for _, part := range strings.Split(msg, ",") {
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return nil, errs.NewWire("sasl", "malformed SCRAM field %q", part)
		}
		fields[part[:eq]] = part[eq+1:]
	}
	return fields, nil
}
