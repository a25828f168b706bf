package api

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt"
	"github.com/sekmet/corefans-relay/internal/types"
)

// The identity collaborator issues the token; the relay only checks the
// signature and reads the claims.
const (
	tokenCookieKey = "token"
	viewerIdClaim  = "user-id"
	nameClaim      = "name"
)

type contextKey string

const viewerKey contextKey = "viewer"

func WithViewer(ctx context.Context, v types.Viewer) context.Context {
	return context.WithValue(ctx, viewerKey, v)
}

func ViewerFrom(ctx context.Context) (types.Viewer, bool) {
	v, ok := ctx.Value(viewerKey).(types.Viewer)
	return v, ok
}

func (a *RelayApp) verifyToken(tokenString string) (types.Viewer, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.signingKey, nil
	})
	if err != nil {
		return types.Viewer{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return types.Viewer{}, fmt.Errorf("invalid token claims")
	}

	viewerId, ok := claims[viewerIdClaim].(string)
	if !ok || viewerId == "" {
		return types.Viewer{}, fmt.Errorf("invalid viewer id claim")
	}

	displayName, _ := claims[nameClaim].(string)
	if displayName == "" {
		displayName = viewerId
	}

	return types.Viewer{Id: viewerId, DisplayName: displayName}, nil
}
