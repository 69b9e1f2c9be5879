package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type ctxKey string

const authIDKey ctxKey = "authID"

// tokenVerifier checks access tokens issued by the managed auth service.
// They are HS256 JWTs signed with the project's JWT secret; sub is the auth user id.
type tokenVerifier struct {
	secret []byte
}

func (v *tokenVerifier) verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// signToken mints a token the verifier accepts. The real service issues
// tokens in production; this serves tests and the seeder's dev logins.
func signToken(secret []byte, authID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   authID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

func (s *server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		authID, err := s.tokens.verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			s.log.Debug("rejected token", append(requestFields(r), zap.Error(err))...)
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), authIDKey, authID)))
	}
}

// currentCreator resolves the caller's creator row. On failure the response
// has already been written.
func (s *server) currentCreator(w http.ResponseWriter, r *http.Request) (*Creator, bool) {
	authID, _ := r.Context().Value(authIDKey).(string)
	me, err := s.store.creatorByAuthID(r.Context(), authID)
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "profile_not_found")
		return nil, false
	}
	if err != nil {
		s.log.Error("load caller", append(requestFields(r), zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	return me, true
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	creatorInput
}

// POST /auth/signup
// Creates the account on the auth service, then the creator row that points at it.
func (s *server) signupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}

		var req signupRequest
		if err := decodeJSON(r, &req); err != nil {
			writeDecodeError(w, err)
			return
		}

		req.Email = strings.TrimSpace(req.Email)
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		c := &Creator{}
		if err := req.apply(c); err != nil {
			writeValidationError(w, err)
			return
		}

		authID, err := s.signup.SignUp(r.Context(), req.Email, req.Password, map[string]any{"name": c.Name})
		if err != nil {
			var aerr *authError
			if errors.As(err, &aerr) {
				writeError(w, http.StatusBadRequest, aerr.Message)
				return
			}
			s.log.Error("sign up", append(requestFields(r), zap.Error(err))...)
			writeError(w, http.StatusBadGateway, "auth_unavailable")
			return
		}

		c.AuthID = authID
		if err := s.store.insertCreator(r.Context(), c); err != nil {
			s.log.Error("create creator", append(requestFields(r), zap.String("auth_id", authID), zap.Error(err))...)
			writeError(w, http.StatusInternalServerError, "register_error")
			return
		}

		s.log.Info("creator signed up", zap.String("creator_id", c.ID))
		writeJSON(w, http.StatusCreated, map[string]string{
			"message":   "Successfully created profile",
			"userId":    authID,
			"creatorId": c.ID,
		})
	}
}
