package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/derWhity/whispqr/internal/models"
)

const secret = "test-secret"

func sign(t *testing.T, key string, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func newVerifier(t *testing.T, conf models.AuthConfig) *Verifier {
	t.Helper()
	logger, _ := test.NewNullLogger()
	v, err := New(conf, logrus.NewEntry(logger))
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestVerify(t *testing.T) {
	v := newVerifier(t, models.AuthConfig{HMACSecret: secret, Issuer: "idp"})
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name     string
		token    string
		wantID   string
		wantName string
		wantErr  bool
	}{
		{
			name: "valid with name",
			token: sign(t, secret, Claims{Name: "Alice", RegisteredClaims: jwt.RegisteredClaims{
				Subject: "host-1", Issuer: "idp", ExpiresAt: future,
			}}),
			wantID:   "host-1",
			wantName: "Alice",
		},
		{
			name: "email as fallback name",
			token: sign(t, secret, Claims{Email: "bob@example.com", RegisteredClaims: jwt.RegisteredClaims{
				Subject: "host-2", Issuer: "idp", ExpiresAt: future,
			}}),
			wantID:   "host-2",
			wantName: "bob@example.com",
		},
		{
			name: "expired",
			token: sign(t, secret, Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "host-1", Issuer: "idp", ExpiresAt: past,
			}}),
			wantErr: true,
		},
		{
			name: "wrong secret",
			token: sign(t, "other", Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "host-1", Issuer: "idp", ExpiresAt: future,
			}}),
			wantErr: true,
		},
		{
			name: "wrong issuer",
			token: sign(t, secret, Claims{RegisteredClaims: jwt.RegisteredClaims{
				Subject: "host-1", Issuer: "someone-else", ExpiresAt: future,
			}}),
			wantErr: true,
		},
		{
			name: "no subject",
			token: sign(t, secret, Claims{RegisteredClaims: jwt.RegisteredClaims{
				Issuer: "idp", ExpiresAt: future,
			}}),
			wantErr: true,
		},
		{name: "garbage", token: "not-a-token", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(tt.token)
			if tt.wantErr {
				if err != ErrInvalidToken {
					t.Fatalf("expected ErrInvalidToken, got %v (%+v)", err, id)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if id.HostID != tt.wantID || id.Name != tt.wantName {
				t.Fatalf("unexpected identity %+v", id)
			}
		})
	}
}

func TestNew_WithoutKeySource(t *testing.T) {
	logger, _ := test.NewNullLogger()
	if _, err := New(models.AuthConfig{}, logrus.NewEntry(logger)); err != ErrNoKeySource {
		t.Fatalf("expected ErrNoKeySource, got %v", err)
	}
}
