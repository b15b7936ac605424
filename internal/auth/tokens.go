package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
)

const (
	cookieIssuer   = "lucidly"
	cookieAudience = "lucidly-web"
	sessionClaim   = "session"
	flowClaim      = "flow"

	// flowLifetime bounds how long a sign-in redirect may take.
	flowLifetime = 10 * time.Minute
)

// Sealer encrypts provider sessions into PASETO v4.local cookie values.
type Sealer struct {
	key      paseto.V4SymmetricKey
	lifetime time.Duration
	now      func() time.Time
}

// NewSealer creates a sealer from a 32-byte key.
func NewSealer(key []byte, lifetime time.Duration) (*Sealer, error) {
	if len(key) != keyLength {
		return nil, fmt.Errorf("session key must be exactly %d bytes, got %d", keyLength, len(key))
	}
	k, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("create PASETO symmetric key: %w", err)
	}
	return &Sealer{key: k, lifetime: lifetime, now: time.Now}, nil
}

// Lifetime is how long a sealed value stays readable.
func (s *Sealer) Lifetime() time.Duration {
	return s.lifetime
}

// Seal encrypts sess. The result expires after the sealer's lifetime.
func (s *Sealer) Seal(sess Session) (string, error) {
	return s.seal(sess.User.ID, sessionClaim, sess, s.lifetime)
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (Session, error) {
	var claims struct {
		Session Session `json:"session"`
	}
	if err := s.open(sealed, &claims); err != nil {
		return Session{}, fmt.Errorf("invalid session cookie: %w", err)
	}
	return claims.Session, nil
}

// SealFlow encrypts the state and code verifier of a sign-in in progress.
func (s *Sealer) SealFlow(a Authorization) (string, error) {
	return s.seal("", flowClaim, flow{State: a.State, Verifier: a.Verifier}, flowLifetime)
}

// OpenFlow decrypts a value produced by SealFlow.
func (s *Sealer) OpenFlow(sealed string) (state, verifier string, err error) {
	var claims struct {
		Flow flow `json:"flow"`
	}
	if err := s.open(sealed, &claims); err != nil {
		return "", "", fmt.Errorf("invalid sign-in cookie: %w", err)
	}
	if claims.Flow.State == "" || claims.Flow.Verifier == "" {
		return "", "", fmt.Errorf("invalid sign-in cookie: missing flow claim")
	}
	return claims.Flow.State, claims.Flow.Verifier, nil
}

type flow struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

func (s *Sealer) seal(subject, claim string, value any, lifetime time.Duration) (string, error) {
	now := s.now()

	token := paseto.NewToken()
	token.SetIssuer(cookieIssuer)
	token.SetAudience(cookieAudience)
	if subject != "" {
		token.SetSubject(subject)
	}
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(lifetime))
	if err := token.Set(claim, value); err != nil {
		return "", fmt.Errorf("set %s claim: %w", claim, err)
	}

	return token.V4Encrypt(s.key, nil), nil
}

// open verifies sealed and decodes its claims into dest.
func (s *Sealer) open(sealed string, dest any) error {
	parser := paseto.NewParser()
	parser.AddRule(paseto.ForAudience(cookieAudience))
	parser.AddRule(paseto.IssuedBy(cookieIssuer))
	parser.AddRule(paseto.ValidAt(s.now()))

	token, err := parser.ParseV4Local(s.key, sealed, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(token.ClaimsJSON(), dest)
}
