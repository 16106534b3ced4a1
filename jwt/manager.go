package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type claim values.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers signature, structure, and claim failures.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when the only defect is a passed expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrWrongTokenType is returned when a structurally valid token carries
	// the other "typ" claim.
	ErrWrongTokenType = errors.New("wrong token type")
)

// Config holds the signing material and lifetimes for a Manager.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
	// TimeFunc is the clock used for expiry validation. Defaults to
	// time.Now; the engine passes its own clock so token validity and
	// session expiry never disagree.
	TimeFunc func() time.Time
}

// Manager mints and parses session tokens. Immutable after construction,
// safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the claim set carried by both token kinds. UID is the subject
// user, SID ties the token to its session row, MFA records whether the
// session passed a second-factor check (refresh tokens carry it forward
// into re-issued access tokens).
type Claims struct {
	UID       string `json:"uid"`
	SID       string `json:"sid"`
	TokenType string `json:"typ"`
	MFA       bool   `json:"mfa,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates the configuration and returns a Manager. The secret
// must be at least 32 bytes; shorter deployment secrets defeat the point of
// signing and are rejected outright.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	return &Manager{config: cfg}, nil
}

// CreateAccess mints an access token and returns it with its expiry.
func (m *Manager) CreateAccess(uid, sid string, mfaVerified bool, now time.Time) (string, time.Time, error) {
	return m.create(uid, sid, TypeAccess, mfaVerified, now, m.config.AccessTTL)
}

// CreateRefresh mints a refresh token and returns it with its expiry.
func (m *Manager) CreateRefresh(uid, sid string, mfaVerified bool, now time.Time) (string, time.Time, error) {
	return m.create(uid, sid, TypeRefresh, mfaVerified, now, m.config.RefreshTTL)
}

func (m *Manager) create(uid, sid, typ string, mfaVerified bool, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(ttl)

	claims := Claims{
		UID:       uid,
		SID:       sid,
		TokenType: typ,
		MFA:       mfaVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccess validates tokenStr as an access token.
func (m *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, TypeAccess)
}

// ParseRefresh validates tokenStr as a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*Claims, error) {
	return m.parse(tokenStr, TypeRefresh)
}

func (m *Manager) parse(tokenStr, wantType string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.TimeFunc != nil {
		options = append(options, jwt.WithTimeFunc(m.config.TimeFunc))
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.UID == "" || claims.SID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}

	return claims, nil
}
