package domain

import "time"

// expirySkew treats tokens about to expire as already expired.
const expirySkew = 5 * time.Minute

// Account identifies the signed-in user.
type Account struct {
	ID          string
	Username    string
	DisplayName string
	TenantID    string
}

// AuthToken is a bearer token plus what is needed to renew it.
type AuthToken struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Account      Account
}

// Valid reports whether the access token is present and not about to expire.
// A zero expiry means the issuer did not say; such tokens are treated as valid.
func (t *AuthToken) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(expirySkew).Before(t.Expiry)
}

// AuthorizationHeader returns the value for the Authorization header.
func (t *AuthToken) AuthorizationHeader() string {
	typ := t.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.AccessToken
}

// AuthState is the sign-in state of an auth client.
type AuthState int

const (
	// SignedOut means no token is held.
	SignedOut AuthState = iota
	// SignedIn means a token is held.
	SignedIn
)

func (s AuthState) String() string {
	if s == SignedIn {
		return "signed-in"
	}
	return "signed-out"
}
