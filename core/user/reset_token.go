package user

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/thinkquality/thinkquality/core"
)

const resetAudience = "password-reset"

var (
	nowFunc = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// resetClaims tie a password reset token to the current state of one account.
// The token stops verifying once the password changes, the user logs in, or the user moves
// to another company or role.
type resetClaims struct {
	jwt.StandardClaims
	CompanyID   string `json:"cid,omitempty"`
	Fingerprint string `json:"fp"`
}

// resetKey differs from the API signing key so a reset token never authenticates a request.
func resetKey() []byte {
	key := sha256.Sum256([]byte("thinkquality.user.reset:" + core.Conf.SecretKey))
	return key[:]
}

func accountFingerprint(usr User) string {
	h := sha256.New()
	for _, field := range []string{usr.ID, usr.CompanyID, usr.Role, string(usr.PasswordHash)} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	if !usr.LastLogin.IsZero() {
		h.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// EncodeUID encodes the user ID for reset links.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", errors.Wrap(err, "decoding uid")
	}
	return string(id), nil
}

// MakeToken signs a password reset token valid for core.Conf.PasswordResetTimeoutDelta.
func MakeToken(usr User) (string, error) {
	now := nowFunc()
	claims := resetClaims{
		StandardClaims: jwt.StandardClaims{
			Audience:  resetAudience,
			Issuer:    core.Conf.AppName,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(core.Conf.PasswordResetTimeoutDelta).Unix(),
		},
		CompanyID:   usr.CompanyID,
		Fingerprint: accountFingerprint(usr),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(resetKey())
	return token, errors.Wrap(err, "signing reset token")
}

func verifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	claims := new(resetClaims)
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errInvalidToken
		}
		return resetKey(), nil
	})

	expired := false
	if err != nil {
		// an expired token still has its signature checked
		if verr, ok := err.(*jwt.ValidationError); !ok || verr.Errors != jwt.ValidationErrorExpired {
			return errInvalidToken
		}
		expired = true
	}

	if !claims.VerifyAudience(resetAudience, true) || claims.Subject != usr.ID || claims.CompanyID != usr.CompanyID {
		return errInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(claims.Fingerprint), []byte(accountFingerprint(usr))) == 0 {
		return errInvalidToken
	}
	if expired {
		return errTokenExpired
	}
	return nil
}
