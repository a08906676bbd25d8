package services

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ViewToken is the client-held record of what was credited in the current day window.
type ViewToken struct {
	VisitorID string
	Credited  []string
	ExpiresAt time.Time
}

// Has reports whether key was already credited in this window.
func (t ViewToken) Has(key string) bool {
	for _, k := range t.Credited {
		if k == key {
			return true
		}
	}
	return false
}

func (t ViewToken) with(key string) ViewToken {
	if t.Has(key) {
		return t
	}
	credited := make([]string, 0, len(t.Credited)+1)
	credited = append(credited, t.Credited...)
	t.Credited = append(credited, key)
	return t
}

type viewClaims struct {
	VisitorID string `json:"vid"`
	Credited  string `json:"ids"`
	jwt.RegisteredClaims
}

// ViewTokenCodec signs and verifies view tokens as HS256 JWTs that expire at the next midnight.
type ViewTokenCodec struct {
	secret []byte
	loc    *time.Location
}

func NewViewTokenCodec(secret string, loc *time.Location) *ViewTokenCodec {
	if loc == nil {
		loc = time.Local
	}
	return &ViewTokenCodec{secret: []byte(secret), loc: loc}
}

// Location is the zone whose midnight closes the window.
func (c *ViewTokenCodec) Location() *time.Location {
	return c.loc
}

// NextMidnight returns the first midnight strictly after now.
func (c *ViewTokenCodec) NextMidnight(now time.Time) time.Time {
	local := now.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, c.loc)
}

// Encode signs t. ExpiresAt must be set.
func (c *ViewTokenCodec) Encode(t ViewToken) (string, error) {
	claims := viewClaims{
		VisitorID: t.VisitorID,
		Credited:  strings.Join(t.Credited, ","),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(t.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies raw at instant now. Anything missing, malformed, tampered or expired
// decodes to an empty credited set. A correctly signed but expired token still yields its
// visitor id.
func (c *ViewTokenCodec) Decode(raw string, now time.Time) ViewToken {
	if raw == "" {
		return ViewToken{}
	}
	claims := &viewClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ViewToken{VisitorID: c.expiredVisitor(raw)}
		}
		return ViewToken{}
	}
	if _, err := uuid.Parse(claims.VisitorID); err != nil {
		return ViewToken{}
	}

	t := ViewToken{VisitorID: claims.VisitorID}
	if claims.ExpiresAt != nil {
		t.ExpiresAt = claims.ExpiresAt.Time
	}
	for _, k := range strings.Split(claims.Credited, ",") {
		if k = strings.TrimSpace(k); k != "" {
			t.Credited = append(t.Credited, k)
		}
	}
	return t
}

// expiredVisitor re-reads an expired token checking only its signature.
func (c *ViewTokenCodec) expiredVisitor(raw string) string {
	claims := &viewClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(claims.VisitorID); err != nil {
		return ""
	}
	return claims.VisitorID
}

func (c *ViewTokenCodec) keyFunc(*jwt.Token) (interface{}, error) {
	return c.secret, nil
}
