package user

import (
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
)

func TestResetToken(t *testing.T) {
	now := time.Now()
	usr := User{
		ID:        "5c0c3b5e-3c0f-4c5e-9a43-5b0e2f3bd0a1",
		CompanyID: "0e0c1d38-6a8e-4c0e-b4a4-3c1f5f0d8b11",
		Name:      "T",
		Email:     "t@test.test",
		Role:      RoleTechnician,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	require.NoError(t, usr.SetPassword("pwd"))

	validToken, err := MakeToken(usr)
	require.NoError(t, err)
	tampered := []byte(validToken)
	i := strings.LastIndex(validToken, ".") + 5
	if tampered[i] == 'A' {
		tampered[i] = 'B'
	} else {
		tampered[i] = 'A'
	}

	// issued a day past the reset window
	nowFunc = func() time.Time { return time.Now().Add(-core.Conf.PasswordResetTimeoutDelta - 24*time.Hour) }
	expiredToken, err := MakeToken(usr)
	nowFunc = time.Now
	require.NoError(t, err)

	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Minute)
	moved := usr
	moved.CompanyID = "6f2b7c1e-1f4a-4a59-9a0e-8d1b8f0c2d33"
	promoted := usr
	promoted.Role = RoleAdmin
	other := usr
	other.ID = "9a4c3a1b-0f1e-4d7c-8f6b-2e5d4c3b2a10"

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "garbage", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "bad segments", usr: usr, token: "aGVsbG8.d29ybGQ.c2ln", wantErr: errInvalidToken},
		{name: "tampered signature", usr: usr, token: string(tampered), wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "expired token of another account", usr: other, token: expiredToken, wantErr: errInvalidToken},
		{name: "user logged in since", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "user moved company", usr: moved, token: validToken, wantErr: errInvalidToken},
		{name: "role changed", usr: promoted, token: validToken, wantErr: errInvalidToken},
		{name: "another user", usr: other, token: validToken, wantErr: errInvalidToken},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, verifyToken(tt.usr, tt.token))
		})
	}
}

func TestResetToken_notAnAPIToken(t *testing.T) {
	usr := User{ID: "5c0c3b5e-3c0f-4c5e-9a43-5b0e2f3bd0a1", Role: RoleSuperAdmin}
	token, err := MakeToken(usr)
	require.NoError(t, err)

	// signed with the plain secret, like API tokens are
	forged := resetClaims{
		StandardClaims: jwt.StandardClaims{
			Audience:  resetAudience,
			Subject:   usr.ID,
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Fingerprint: accountFingerprint(usr),
	}
	apiSigned, err := jwt.NewWithClaims(jwt.SigningMethodHS256, forged).SignedString([]byte(core.Conf.SecretKey))
	require.NoError(t, err)

	assert.NoError(t, verifyToken(usr, token))
	assert.Equal(t, errInvalidToken, verifyToken(usr, apiSigned))
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "5c0c3b5e-3c0f-4c5e-9a43-5b0e2f3bd0a1"}
	id, err := decodeUID(EncodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = decodeUID("!!!")
	assert.Error(t, err)
}
