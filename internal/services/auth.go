package services

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/scentmatch/scentmatch-backend/internal/logger"
	errs "github.com/scentmatch/scentmatch-backend/internal/pkg/errors"
	"github.com/scentmatch/scentmatch-backend/internal/requestdata"
)

// AuthService verifies access tokens minted by the identity collaborator.
// Token issuance, refresh and registration live there, not here.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	secret []byte
	log    *logger.Logger
}

func NewAuthService(secret string, baseLog *logger.Logger) AuthService {
	return &authService{
		secret: []byte(secret),
		log:    baseLog.With("service", "AuthService"),
	}
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ctx, errs.ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return ctx, errs.ErrUnauthorized
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return ctx, errs.ErrUnauthorized
	}

	return requestdata.WithRequestData(ctx, &requestdata.RequestData{UserID: userID}), nil
}
