package devserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/naveenspark/tess/pkg/domain"
)

type scanRequest struct {
	QRData string `json:"qr_data"`
}

type staffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// issue signs a token for subject and returns it with its expiry.
func (s *Server) issue(subject string, role domain.Role) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(TokenTTL).Truncate(time.Second).UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tess-devserver",
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// parseToken verifies a token issued by this server and returns its
// subject and role.
func (s *Server) parseToken(raw string) (string, domain.Role, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", "", fmt.Errorf("devserver: parse token: %w", err)
	}
	return c.Subject, domain.Role(c.Role), nil
}

// bearerMiddleware rejects requests without a valid token from issue. It
// is a no-op unless RequireAuth is set, since local demo sessions carry
// tokens this server never signed.
func (s *Server) bearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.requireAuth {
			next.ServeHTTP(w, r)
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		sub, role, err := s.parseToken(raw)
		if err != nil {
			s.log.WarnContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		s.log.DebugContext(r.Context(), "token accepted", "subject", sub, "role", string(role))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticateScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.QRData == "" {
		writeError(w, http.StatusBadRequest, "Missing required field: qr_data")
		return
	}
	if !strings.HasPrefix(req.QRData, ScanTokenPrefix) {
		writeError(w, http.StatusBadRequest, "Invalid QR code format")
		return
	}

	student := demoStudent
	student.CreatedAt = s.now().UTC().Truncate(time.Second)
	token, expiresAt, err := s.issue(student.ID, domain.RoleStudent)
	if err != nil {
		s.log.Error("issue student token", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"student":    student,
		"token":      token,
		"expires_at": expiresAt,
	})
}

func (s *Server) authenticateStaff(w http.ResponseWriter, r *http.Request) {
	var req staffRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: email, password")
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.Email), DemoStaffEmail) ||
		bcrypt.CompareHashAndPassword(s.staffHash, []byte(req.Password)) != nil {
		s.log.Warn("staff login rejected", "email", req.Email)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	educator := demoEducator
	educator.CreatedAt = s.now().UTC().Truncate(time.Second)
	token, expiresAt, err := s.issue(educator.ID, domain.RoleStaff)
	if err != nil {
		s.log.Error("issue staff token", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"educator":   educator,
		"token":      token,
		"expires_at": expiresAt,
	})
}
