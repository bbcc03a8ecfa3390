// app/echoServer/jwtx/user.go
package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func claimsFromContext(c echo.Context) (jwt.MapClaims, error) {
	switch v := c.Get("user").(type) {
	case *jwt.Token:
		if mc, ok := v.Claims.(jwt.MapClaims); ok {
			return mc, nil
		}
		return nil, errors.New("invalid jwt claims")
	case jwt.MapClaims:
		return v, nil
	}
	return nil, errors.New("no jwt token in context")
}

func UserIDFromContext(c echo.Context) (int64, error) {
	mc, err := claimsFromContext(c)
	if err != nil {
		return 0, err
	}
	if f, ok := mc["sub"].(float64); ok {
		return int64(f), nil
	}
	return 0, errors.New("sub missing in claims")
}

func RoleFromContext(c echo.Context) (string, error) {
	mc, err := claimsFromContext(c)
	if err != nil {
		return "", err
	}
	if s, ok := mc["role"].(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role missing in claims")
}
