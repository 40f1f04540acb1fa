package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"
)

// SaltLength is the PSS salt length the gateway verifier expects.
const SaltLength = 32

// SignType is the sign_type value sent alongside every signature.
const SignType = "SHA256WithRSA"

var (
	// ErrKeyUnavailable is returned when no private key was supplied.
	ErrKeyUnavailable = errors.New("signer: private key unavailable")
	// ErrSigningFailure is returned when the key cannot be used to sign.
	ErrSigningFailure = errors.New("signer: signing failed")
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("signer: invalid signature")
)

// Signer signs canonicalized parameters with an RSA key parsed once.
// It holds no mutable state and is safe for concurrent use.
type Signer struct {
	key *rsa.PrivateKey
}

// New parses a PEM encoded RSA private key (PKCS#1 or PKCS#8).
func New(privateKeyPEM string) (*Signer, error) {
	if strings.TrimSpace(privateKeyPEM) == "" {
		return nil, ErrKeyUnavailable
	}

	key, err := cryptoutils.UnmarshalPEMToPrivateKey([]byte(privateKeyPEM), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrSigningFailure, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported private key type %T", ErrSigningFailure, key)
	}

	return &Signer{key: rsaKey}, nil
}

// Sign canonicalizes params and signs them with the given PEM key.
func Sign(params Params, privateKeyPEM string) (string, error) {
	s, err := New(privateKeyPEM)
	if err != nil {
		return "", err
	}
	return s.Sign(params)
}

// Sign returns the base64 RSA-PSS signature (SHA-256, MGF1-SHA256, salt 32)
// of the canonical string of params.
func (s *Signer) Sign(params Params) (string, error) {
	if s == nil || s.key == nil {
		return "", ErrKeyUnavailable
	}

	rsaSigner, err := signature.LoadRSAPSSSigner(s.key, crypto.SHA256, pssOptions())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}

	sig, err := rsaSigner.SignMessage(strings.NewReader(Canonicalize(params)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}

// PublicKeyPEM returns the PEM encoded public half of the signing key.
func (s *Signer) PublicKeyPEM() (string, error) {
	if s == nil || s.key == nil {
		return "", ErrKeyUnavailable
	}
	pemBytes, err := cryptoutils.MarshalPublicKeyToPEM(&s.key.PublicKey)
	if err != nil {
		return "", err
	}
	return string(pemBytes), nil
}

// Verify checks a base64 signature over the canonical string of params
// against a PEM encoded RSA public key.
func Verify(params Params, sig, publicKeyPEM string) error {
	pub, err := cryptoutils.UnmarshalPEMToPublicKey([]byte(publicKeyPEM))
	if err != nil {
		return fmt.Errorf("%w: parse public key: %v", ErrInvalidSignature, err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: unsupported public key type %T", ErrInvalidSignature, pub)
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return fmt.Errorf("%w: decode signature: %v", ErrInvalidSignature, err)
	}

	verifier, err := signature.LoadRSAPSSVerifier(rsaPub, crypto.SHA256, pssOptions())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if err := verifier.VerifySignature(bytes.NewReader(raw), strings.NewReader(Canonicalize(params))); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// pssOptions is built per call; the sigstore signer writes the hash into it.
func pssOptions() *rsa.PSSOptions {
	return &rsa.PSSOptions{SaltLength: SaltLength, Hash: crypto.SHA256}
}
