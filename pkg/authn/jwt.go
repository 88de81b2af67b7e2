package authn

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures JWT bearer-token identity extraction.
type JWTConfig struct {
	// UserClaim is the claim holding the username. Default: "sub".
	UserClaim string

	// RoleClaim is the claim path holding the caller's role. Supports
	// dot-notation for nested claims (e.g. "realm_access.roles"); array
	// claims match when they contain a known role. Default: "role".
	RoleClaim string

	// PublicKeyPath points to a PEM-encoded RSA public key for RS256
	// verification. If empty, tokens are parsed but NOT verified, which is
	// only safe behind a trusted proxy that already validated them.
	PublicKeyPath string

	// Issuer is the expected iss claim. Empty skips the check.
	Issuer string

	// Audience is the expected aud claim. Empty skips the check.
	Audience string

	Logger *slog.Logger
}

// NewJWTMiddleware builds a middleware that populates the request identity
// from a Bearer token. Requests without a usable token pass through
// anonymous; the role guards reject them where it matters.
func NewJWTMiddleware(cfg JWTConfig) (func(http.Handler) http.Handler, error) {
	if cfg.UserClaim == "" {
		cfg.UserClaim = "sub"
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "role"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var publicKey *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		key, err := loadRSAPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		publicKey = key
		cfg.Logger.Info("JWT auth: using RS256 verification", "keyPath", cfg.PublicKeyPath)
	} else {
		cfg.Logger.Warn("JWT auth: no public key configured, tokens parsed without verification (trusted proxy mode)")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parseClaims(token, publicKey, cfg)
			if err != nil {
				cfg.Logger.Debug("JWT parse failed, request stays anonymous", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			id := identityFromClaims(claims, cfg)
			if id == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}, nil
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JWT public key from %s: %w", path, err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("decode PEM block from %s", path)
	}
	parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rsaKey, ok := parsedKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA (got %T)", parsedKey)
	}
	return rsaKey, nil
}

// extractBearerToken extracts the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseClaims(tokenString string, publicKey *rsa.PublicKey, cfg JWTConfig) (jwt.MapClaims, error) {
	parserOpts := []jwt.ParserOption{}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}

	var token *jwt.Token
	var err error
	if publicKey != nil {
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return publicKey, nil
		}, parserOpts...)
	} else {
		parser := jwt.NewParser(parserOpts...)
		token, _, err = parser.ParseUnverified(tokenString, jwt.MapClaims{})
	}
	if err != nil {
		return nil, fmt.Errorf("JWT parse error: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return claims, nil
}

func identityFromClaims(claims jwt.MapClaims, cfg JWTConfig) *Identity {
	user, _ := claims[cfg.UserClaim].(string)
	if user == "" {
		return nil
	}
	return &Identity{User: user, Role: roleFromClaims(claims, cfg.RoleClaim)}
}

// roleFromClaims resolves the caller's role from the claim path. Unknown or
// missing values map to viewer.
func roleFromClaims(claims jwt.MapClaims, claimPath string) string {
	parts := strings.Split(claimPath, ".")
	var current interface{} = map[string]interface{}(claims)
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return RoleViewer
		}
		current, ok = m[part]
		if !ok {
			return RoleViewer
		}
	}

	if strVal, ok := current.(string); ok {
		return normalizeRole(strVal)
	}
	// Array claims (e.g. Keycloak realm_access.roles): the strongest known
	// role wins.
	if arrVal, ok := current.([]interface{}); ok {
		role := RoleViewer
		for _, v := range arrVal {
			s, ok := v.(string)
			if !ok {
				continue
			}
			switch normalizeRole(s) {
			case RoleAdmin:
				return RoleAdmin
			case RoleHelpdesk:
				role = RoleHelpdesk
			}
		}
		return role
	}
	return RoleViewer
}

func normalizeRole(s string) string {
	switch strings.ToLower(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleHelpdesk:
		return RoleHelpdesk
	default:
		return RoleViewer
	}
}
