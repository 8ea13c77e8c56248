// Package identity verifies the bearer tokens issued by the identity provider hosts log in with.
// whispqr does not manage accounts itself; a valid token is all it needs to know who a host is.
package identity

import (
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/whispqr/internal/models"
)

var (
	// ErrNoKeySource is returned when neither a shared secret nor a JWKS URL has been configured
	ErrNoKeySource = errors.New("no key source for identity tokens configured")
	// ErrInvalidToken is returned for tokens that cannot be verified or carry no subject
	ErrInvalidToken = errors.New("invalid identity token")
)

// Claims are the token claims whispqr reads
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks identity tokens
type Verifier struct {
	keyfunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	parser  *jwt.Parser
}

// New creates a verifier from the given configuration. A JWKS URL takes precedence over a shared secret.
func New(conf models.AuthConfig, logger *logrus.Entry) (*Verifier, error) {
	v := &Verifier{}
	var methods []string
	switch {
	case conf.JWKSURL != "":
		jwks, err := keyfunc.Get(conf.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				logger.WithError(err).Warn("Failed to refresh the identity provider's key set")
			},
		})
		if err != nil {
			return nil, err
		}
		v.jwks = jwks
		v.keyfunc = jwks.Keyfunc
		methods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "EdDSA"}
	case conf.HMACSecret != "":
		secret := []byte(conf.HMACSecret)
		v.keyfunc = func(*jwt.Token) (interface{}, error) {
			return secret, nil
		}
		methods = []string{"HS256", "HS384", "HS512"}
	default:
		return nil, ErrNoKeySource
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if conf.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(conf.Issuer))
	}
	if conf.Audience != "" {
		opts = append(opts, jwt.WithAudience(conf.Audience))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// Verify checks the given token and returns the identity it belongs to
func (v *Verifier) Verify(tokenStr string) (*models.Identity, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenStr, claims, v.keyfunc)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	return &models.Identity{HostID: claims.Subject, Name: name}, nil
}

// Close stops the background refresh of the key set
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
