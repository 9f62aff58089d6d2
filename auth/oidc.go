package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gardenhub/shoot-events/config"
	"github.com/gardenhub/shoot-events/globals"
	"github.com/gardenhub/shoot-events/types"
)

// Authenticator verifies the bearer credential presented in the authenticate
// message and resolves it to a user identity.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (*types.User, error)
}

// OIDCAuthenticator verifies bearer tokens as OIDC ID-tokens against the
// configured provider. The user id is set to the "email" claim.
// TODO: make the identity claim configurable, but ensure it is unique across the user base!
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCAuthenticator discovers the provider endpoints once at startup.
func NewOIDCAuthenticator(ctx context.Context, cfg *config.AuthConfig) (*OIDCAuthenticator, error) {
	if cfg.ProviderUrl == "" {
		return nil, fmt.Errorf("no oidc provider configured")
	}
	provider, err := oidc.NewProvider(ctx, cfg.ProviderUrl)
	if err != nil {
		return nil, err
	}
	conf := oidc.Config{}
	if cfg.ClientId == "" {
		conf.SkipClientIDCheck = true
	} else {
		conf.ClientID = cfg.ClientId
	}
	return &OIDCAuthenticator{verifier: provider.Verifier(&conf)}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, bearer string) (*types.User, error) {
	if bearer == "" {
		return nil, fmt.Errorf("no bearer token")
	}
	idToken, err := a.verifier.Verify(ctx, bearer)
	if err != nil {
		globals.AppLogger.Debug("token verification failed", "error", err)
		return nil, err
	}
	claims := struct {
		Email string `json:"email"`
	}{}
	err = idToken.Claims(&claims)
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("no email claim in token")
	}
	return &types.User{
		Id:     claims.Email,
		Email:  claims.Email,
		Bearer: bearer,
	}, nil
}
