/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestParse_ValidHS256(t *testing.T) {
	secret := []byte("test-secret")
	token, err := Issue(secret, Claims{ClientID: 17, Roles: []string{"client"}}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.ClientID != 17 {
		t.Fatalf("expected client id 17, got %d", claims.ClientID)
	}
	if claims.Subject != "17" || claims.Issuer != "farewatch" {
		t.Errorf("registered claims = %+v", claims.RegisteredClaims)
	}
	if !claims.HasRole("client") || claims.HasRole("admin") {
		t.Errorf("roles = %v", claims.Roles)
	}
}

func TestIssue_RequiresClient(t *testing.T) {
	if _, err := Issue([]byte("s"), Claims{}, time.Hour); !errors.Is(err, ErrMissingClient) {
		t.Fatalf("err = %v, want ErrMissingClient", err)
	}
}

func signed(t *testing.T, method jwt.SigningMethod, secret []byte, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return tok
}

func TestParse_Rejects(t *testing.T) {
	secret := []byte("test-secret")
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Issuer:    "farewatch",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	tests := []struct {
		name  string
		token string
	}{
		{"other algorithm", signed(t, jwt.SigningMethodHS384, secret, Claims{ClientID: 1, RegisteredClaims: valid})},
		{"wrong secret", signed(t, jwt.SigningMethodHS256, []byte("other"), Claims{ClientID: 1, RegisteredClaims: valid})},
		{"expired", signed(t, jwt.SigningMethodHS256, secret, Claims{ClientID: 1, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "farewatch",
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		}})},
		{"no expiry", signed(t, jwt.SigningMethodHS256, secret, Claims{ClientID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: "farewatch"}})},
		{"foreign issuer", signed(t, jwt.SigningMethodHS256, secret, Claims{ClientID: 1, RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}})},
		{"no client", signed(t, jwt.SigningMethodHS256, secret, Claims{RegisteredClaims: valid})},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(secret, tt.token); err == nil {
				t.Fatal("expected parse to fail")
			}
		})
	}
}
