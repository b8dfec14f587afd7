package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/accounts/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	activationTokenType = "activation"
	// Tolerated clock skew for iat values minted slightly in the future.
	activationLeeway = 5 * time.Second
)

// ErrInvalidIdentity is returned when an encoded identity cannot be decoded
// into an account ID.
var ErrInvalidIdentity = errors.New("invalid account identity")

// ActivationClaims are the claims carried by an activation token.
type ActivationClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// ActivationTokenCodec mints and verifies stateless activation tokens.
//
// The signing key is derived from the server secret and the account's
// fingerprint, so a token stops verifying as soon as any fingerprinted
// field changes (activation itself, a new password, a login).
type ActivationTokenCodec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewActivationTokenCodec(secret string, maxAge time.Duration) *ActivationTokenCodec {
	return &ActivationTokenCodec{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Fingerprint renders the account fields an activation token is bound to.
func Fingerprint(account *models.Account) string {
	lastLogin := ""
	if account.LastLoginAt != nil {
		lastLogin = strconv.FormatInt(account.LastLoginAt.Unix(), 10)
	}

	return strings.Join([]string{
		account.ID,
		account.PasswordHash,
		strconv.FormatInt(account.PasswordChangedAt.UnixMicro(), 10),
		lastLogin,
		strconv.FormatBool(account.Active),
	}, "|")
}

func (c *ActivationTokenCodec) signingKey(account *models.Account) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(activationTokenType + "|" + Fingerprint(account)))
	return mac.Sum(nil)
}

// Mint issues an activation token for the account's current state.
func (c *ActivationTokenCodec) Mint(account *models.Account) (string, error) {
	if account == nil || account.ID == "" {
		return "", fmt.Errorf("mint activation token: %w", ErrInvalidIdentity)
	}

	claims := &ActivationClaims{
		Type: activationTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  account.ID,
			IssuedAt: jwt.NewNumericDate(c.now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey(account))
	if err != nil {
		return "", fmt.Errorf("failed to sign activation token: %w", err)
	}
	return signed, nil
}

// Verify reports whether token was minted for account in its current state
// and is not older than the configured maximum age.
func (c *ActivationTokenCodec) Verify(account *models.Account, token string) bool {
	if account == nil || token == "" {
		return false
	}

	claims := &ActivationClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return c.signingKey(account), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(activationLeeway),
		jwt.WithTimeFunc(c.now),
		jwt.WithSubject(account.ID),
	)
	if err != nil || !parsed.Valid {
		return false
	}

	if claims.Type != activationTokenType || claims.IssuedAt == nil {
		return false
	}

	return c.now().Sub(claims.IssuedAt.Time) <= c.maxAge
}

// EncodeIdentity renders an account ID for use in an activation link.
func EncodeIdentity(accountID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(accountID))
}

// DecodeIdentity reverses EncodeIdentity. The decoded value must be a UUID.
func DecodeIdentity(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return "", ErrInvalidIdentity
	}

	id, err := uuid.Parse(string(raw))
	if err != nil {
		return "", ErrInvalidIdentity
	}
	return id.String(), nil
}
