package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names a supported signing strategy.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with EdDSA over an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

// minHMACSecret is the shortest shared secret accepted for HS256.
const minHMACSecret = 32

// Signer is the pluggable signing strategy behind [Manager]. Sign produces a
// compact token for the given claims; Verify authenticates a token and
// returns its claims without judging expiry. Implementations hold their own
// key material and must be safe for concurrent use.
type Signer interface {
	Sign(claims *Claims) (string, error)
	Verify(token string) (*Claims, error)
}

// HMACSigner implements [Signer] with HS256.
type HMACSigner struct {
	secret []byte
	keyID  string
}

// NewHMACSigner returns an HS256 signer. The secret is copied.
func NewHMACSigner(secret []byte, keyID string) (*HMACSigner, error) {
	if len(secret) < minHMACSecret {
		return nil, fmt.Errorf("hs256 secret must be at least %d bytes", minHMACSecret)
	}
	return &HMACSigner{
		secret: append([]byte(nil), secret...),
		keyID:  keyID,
	}, nil
}

// Sign implements [Signer].
func (s *HMACSigner) Sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	return token.SignedString(s.secret)
}

// Verify implements [Signer].
func (s *HMACSigner) Verify(token string) (*Claims, error) {
	return parseClaims(token, jwt.SigningMethodHS256, s.keyID, func() (interface{}, error) {
		return s.secret, nil
	})
}

// Ed25519Signer implements [Signer] with EdDSA. A signer built from only a
// public key can verify but not sign.
type Ed25519Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	keyID   string
}

// NewEd25519Signer accepts raw or PEM-encoded keys. At least the public key
// (or a private key it can be derived from) is required.
func NewEd25519Signer(privateKey, publicKey []byte, keyID string) (*Ed25519Signer, error) {
	s := &Ed25519Signer{keyID: keyID}
	if len(privateKey) > 0 {
		priv, err := parseEdPrivateKey(privateKey)
		if err != nil {
			return nil, err
		}
		s.private = priv
		s.public = priv.Public().(ed25519.PublicKey)
	}
	if len(publicKey) > 0 {
		pub, err := parseEdPublicKey(publicKey)
		if err != nil {
			return nil, err
		}
		if s.public != nil && !s.public.Equal(pub) {
			return nil, errors.New("ed25519 public key does not match private key")
		}
		s.public = pub
	}
	if s.public == nil {
		return nil, errors.New("ed25519 requires a public or private key")
	}
	return s, nil
}

// Sign implements [Signer].
func (s *Ed25519Signer) Sign(claims *Claims) (string, error) {
	if s.private == nil {
		return "", errors.New("ed25519 signer has no private key")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	return token.SignedString(s.private)
}

// Verify implements [Signer].
func (s *Ed25519Signer) Verify(token string) (*Claims, error) {
	return parseClaims(token, jwt.SigningMethodEdDSA, s.keyID, func() (interface{}, error) {
		return s.public, nil
	})
}

// parseClaims checks signature, algorithm and kid. Time-based claims are
// left to the Manager so the expiry boundary stays under its clock.
func parseClaims(tokenStr string, method jwt.SigningMethod, keyID string, key func() (interface{}, error)) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithoutClaimsValidation(),
		// Non-zero trailing bits would give one signature many spellings.
		jwt.WithStrictDecoding(),
	)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if keyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != keyID {
				return nil, errors.New("unknown kid")
			}
		}
		return key()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
