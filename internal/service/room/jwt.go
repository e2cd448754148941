package room

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/watchparty/server/internal/repository/connection"
)

// Authenticate resolves an externally issued credential to a user identity.
// It is the only gate in front of the realtime surface: a connection that
// fails here is refused before any room operation.
func (s *service) Authenticate(tokenString string) (connection.Identity, error) {
	if tokenString == "" {
		return connection.Identity{}, ErrUnauthorized
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}

		return []byte(s.secret), nil
	})
	if err != nil || !token.Valid {
		return connection.Identity{}, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return connection.Identity{}, ErrUnauthorized
	}

	userId, ok := claims["user_id"].(float64)
	if !ok {
		return connection.Identity{}, ErrUnauthorized
	}

	username, _ := claims["username"].(string)

	return connection.Identity{
		UserId:   int64(userId),
		Username: username,
	}, nil
}

// GenerateToken issues a credential accepted by Authenticate. The account
// system normally does this; it is exposed for tests and local tooling.
func (s *service) GenerateToken(userId int64, username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  userId,
		"username": username,
	})

	return token.SignedString([]byte(s.secret))
}
