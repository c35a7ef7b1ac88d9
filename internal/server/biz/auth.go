package biz

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"

	"github.com/looplj/authcore/internal/authz"
	"github.com/looplj/authcore/internal/contexts"
	"github.com/looplj/authcore/internal/log"
	"github.com/looplj/authcore/internal/privileges"
	"github.com/looplj/authcore/internal/store"
)

// AuthConfig configures principal token minting.
type AuthConfig struct {
	SecretKey string `conf:"secret_key" yaml:"secret_key" json:"secret_key"`

	// TokenTTL is the lifetime of session tokens; SingleUseTokenTTL the
	// lifetime of narrowed single-use tokens.
	TokenTTL          time.Duration `conf:"token_ttl"            yaml:"token_ttl"            json:"token_ttl"`
	SingleUseTokenTTL time.Duration `conf:"single_use_token_ttl" yaml:"single_use_token_ttl" json:"single_use_token_ttl"`
}

type AuthServiceParams struct {
	fx.In

	Store      *store.Store
	Principals *authz.Store
	Config     AuthConfig
}

func NewAuthService(params AuthServiceParams) *AuthService {
	cfg := params.Config
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}

	if cfg.SingleUseTokenTTL == 0 {
		cfg.SingleUseTokenTTL = 5 * time.Minute
	}

	return &AuthService{
		AbstractService: &AbstractService{store: params.Store},
		principals:      params.Principals,
		config:          cfg,
	}
}

type AuthService struct {
	*AbstractService

	principals *authz.Store
	config     AuthConfig
}

// GenerateSecretKey generates a random signing key.
func GenerateSecretKey() (string, error) {
	bytes := make([]byte, 32) // 256 bits

	_, err := rand.Read(bytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return hex.EncodeToString(bytes), nil
}

// EstablishSession loads the account's principal and establishes it on a new
// unit-of-work context. Called after credentials have been verified upstream.
func (s *AuthService) EstablishSession(ctx context.Context, accountID int) (context.Context, *authz.Principal, error) {
	p, err := authz.RunAsSystem(ctx, "auth-establish-session", func(ctx context.Context) (*authz.Principal, error) {
		return s.store.LoadPrincipal(ctx, accountID)
	})
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil, fmt.Errorf("account %d: %w", accountID, ErrNotFound)
		}

		log.Error(ctx, "failed to load principal", log.Int("account_id", accountID), log.Cause(err))

		return nil, nil, ErrInternal
	}

	p.Method = authz.AuthMethodPassword

	log.Debug(ctx, "session established", log.String("principal", p.String()))

	return authz.NewAccountContext(contexts.EnsureRequestID(ctx), p), p, nil
}

// GenerateToken mints a session token for the account.
func (s *AuthService) GenerateToken(ctx context.Context, accountID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"exp":        time.Now().Add(s.config.TokenTTL).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// GenerateSingleUseToken mints a short-lived token whose principal is narrowed
// to the allowed privileges at authentication time. The bearer can never
// exercise more privilege than the minting session held.
func (s *AuthService) GenerateSingleUseToken(ctx context.Context, accountID int, allowed privileges.Set) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"single_use": true,
		"privileges": allowed.Strings(),
		"exp":        time.Now().Add(s.config.SingleUseTokenTTL).Unix(),
	})

	tokenString, err := token.SignedString([]byte(s.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// AuthenticateToken validates the token, loads the account's principal and
// establishes it on a new unit-of-work context. Single-use tokens yield a
// narrowed principal that is excluded from staleness reloading, so it cannot
// be widened back for its short lifetime.
func (s *AuthService) AuthenticateToken(ctx context.Context, tokenString string) (context.Context, *authz.Principal, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, nil, err
	}

	accountID, ok := claims["account_id"].(float64)
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing account claim", ErrInvalidToken)
	}

	p, err := authz.RunAsSystem(ctx, "auth-token-lookup", func(ctx context.Context) (*authz.Principal, error) {
		return s.store.LoadPrincipal(ctx, int(accountID))
	})
	if err != nil {
		if store.IsNotFound(err) {
			return nil, nil, fmt.Errorf("%w: unknown account", ErrInvalidToken)
		}

		log.Error(ctx, "failed to load principal", log.Int("account_id", int(accountID)), log.Cause(err))

		return nil, nil, ErrInternal
	}

	p.Method = authz.AuthMethodToken

	if singleUse, _ := claims["single_use"].(bool); singleUse {
		p = p.RetainPrivileges(privileges.NewSetFromStrings(claimedPrivileges(claims)))
		p.SingleUse = true
	}

	return authz.NewAccountContext(contexts.EnsureRequestID(ctx), p), p, nil
}

func (s *AuthService) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method: %v", ErrInvalidToken, token.Header["alg"])
		}

		return []byte(s.config.SecretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}

	return claims, nil
}

func claimedPrivileges(claims jwt.MapClaims) []string {
	raw, _ := claims["privileges"].([]any)

	slugs := make([]string, 0, len(raw))

	for _, v := range raw {
		if s, ok := v.(string); ok {
			slugs = append(slugs, s)
		}
	}

	return slugs
}
