// Package auth owns the authenticated/unauthenticated duality of the app.
//
// The Machine is the only writer of the auth half of the state container
// and of the credential store. Every transition updates both in the same
// step: a failed store write rolls the keys back and leaves the machine
// unauthenticated.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/naveenspark/tess/internal/appstate"
	"github.com/naveenspark/tess/internal/credstore"
	"github.com/naveenspark/tess/pkg/client"
	"github.com/naveenspark/tess/pkg/domain"
)

// LocalTokenTTL is the validity of tokens minted by SignUp and DemoSignIn.
const LocalTokenTTL = 8 * time.Hour

var (
	// ErrAuthFailed wraps every failed login.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrInvalidProfile is returned by SignUp for unusable input.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Directory authenticates principals against the remote directory service.
// *client.Client satisfies it.
type Directory interface {
	AuthenticateByScanToken(ctx context.Context, scanToken string) (*client.StudentAuth, error)
	AuthenticateStaff(ctx context.Context, email, password string) (*client.StaffAuth, error)
}

// TokenSink receives the bearer token whenever it changes.
// *client.Client satisfies it.
type TokenSink interface {
	SetToken(token string)
}

// Options tune a Machine. The zero value is usable.
type Options struct {
	Logger     *slog.Logger
	Now        func() time.Time
	SigningKey []byte // HS256 key for locally minted tokens
	Tokens     TokenSink
}

// Machine is the auth state machine.
type Machine struct {
	state *appstate.Store
	creds credstore.Store
	dir   Directory

	log    *slog.Logger
	now    func() time.Time
	key    []byte
	tokens TokenSink

	mu       sync.Mutex
	onLogout []func()
}

// New returns a machine in the Uninitialized state. Call Restore next.
func New(state *appstate.Store, creds credstore.Store, dir Directory, opts Options) *Machine {
	m := &Machine{
		state:  state,
		creds:  creds,
		dir:    dir,
		log:    opts.Logger,
		now:    opts.Now,
		key:    opts.SigningKey,
		tokens: opts.Tokens,
	}
	if m.log == nil {
		m.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if len(m.key) == 0 {
		m.key = make([]byte, 32)
		if _, err := rand.Read(m.key); err != nil {
			panic(fmt.Sprintf("auth: read random key: %v", err))
		}
	}
	return m
}

// OnLogout registers fn to run before the session is cleared. Used by the
// flow machine to leave a live call.
func (m *Machine) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

// State returns the current auth state.
func (m *Machine) State() appstate.AuthState {
	return m.state.Snapshot().Auth
}

// Restore recovers a session from the credential store. Any missing or
// unparseable key, or an expired session, lands in Unauthenticated with
// the store cleared.
func (m *Machine) Restore() appstate.AuthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.SetAuth(appstate.AuthState{Phase: appstate.AuthRestoring, Session: domain.AuthSession{Role: domain.RoleNone}})

	sess, reason := m.readStored()
	if reason != "" {
		m.log.Info("no session restored", "reason", reason)
		if err := m.creds.Remove(credstore.Keys...); err != nil {
			m.log.Warn("clear credentials", "err", err)
		}
		m.setToken("")
		m.state.SetAuth(appstate.AuthState{Phase: appstate.AuthUnauthenticated, Session: domain.AuthSession{Role: domain.RoleNone}})
		return m.state.Snapshot().Auth
	}

	m.setToken(sess.Token)
	m.state.SetAuth(appstate.AuthState{Phase: appstate.AuthAuthenticated, Session: sess})
	m.log.Info("session restored", "role", sess.Role, "expires_at", sess.ExpiresAt)
	return m.state.Snapshot().Auth
}

// readStored returns the stored session, or a non-empty reason it could
// not be used.
func (m *Machine) readStored() (domain.AuthSession, string) {
	vals := make(map[string]string, len(credstore.Keys))
	for _, k := range credstore.Keys {
		v, ok, err := m.creds.Get(k)
		if err != nil {
			return domain.AuthSession{}, "read " + k + ": " + err.Error()
		}
		if !ok || v == "" {
			return domain.AuthSession{}, "missing " + k
		}
		vals[k] = v
	}

	role := domain.Role(vals[credstore.KeyRole])
	if !role.Valid() {
		return domain.AuthSession{}, "unknown role"
	}
	expiresAt, err := time.Parse(time.RFC3339, vals[credstore.KeyExpiresAt])
	if err != nil {
		return domain.AuthSession{}, "bad expiry"
	}
	if !m.now().Before(expiresAt) {
		return domain.AuthSession{}, "expired"
	}

	sess := domain.AuthSession{Role: role, Token: vals[credstore.KeyToken], ExpiresAt: expiresAt}
	profile := []byte(vals[credstore.KeyProfile])
	switch role {
	case domain.RoleStudent:
		var s domain.Student
		if err := json.Unmarshal(profile, &s); err != nil || s.ID == "" {
			return domain.AuthSession{}, "bad profile"
		}
		sess.Student = &s
	case domain.RoleStaff:
		var e domain.Educator
		if err := json.Unmarshal(profile, &e); err != nil || e.ID == "" {
			return domain.AuthSession{}, "bad profile"
		}
		sess.Educator = &e
	}
	return sess, ""
}

// LoginScanToken exchanges a badge scan token for a student session.
func (m *Machine) LoginScanToken(ctx context.Context, scanToken string) error {
	scanToken = strings.TrimSpace(scanToken)
	if scanToken == "" {
		return fmt.Errorf("auth.LoginScanToken: %w: empty scan token", ErrAuthFailed)
	}
	res, err := m.dir.AuthenticateByScanToken(ctx, scanToken)
	if err != nil {
		m.log.Warn("scan login failed", "err", err)
		return fmt.Errorf("auth.LoginScanToken: %w: %w", ErrAuthFailed, err)
	}
	student := res.Student
	return m.commitChecked("auth.LoginScanToken", domain.AuthSession{
		Role:      domain.RoleStudent,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Student:   &student,
	})
}

// LoginStaff authenticates an educator. Rejected credentials match both
// ErrAuthFailed and client.ErrInvalidCredentials.
func (m *Machine) LoginStaff(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("auth.LoginStaff: %w: %w", ErrAuthFailed, client.ErrInvalidCredentials)
	}
	res, err := m.dir.AuthenticateStaff(ctx, email, password)
	if err != nil {
		m.log.Warn("staff login failed", "email", email, "err", err)
		return fmt.Errorf("auth.LoginStaff: %w: %w", ErrAuthFailed, err)
	}
	educator := res.Educator
	return m.commitChecked("auth.LoginStaff", domain.AuthSession{
		Role:      domain.RoleStaff,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Educator:  &educator,
	})
}

// SignUp creates a local student profile without contacting the directory.
func (m *Machine) SignUp(name string, grade int, classID string) error {
	name = strings.TrimSpace(name)
	classID = strings.TrimSpace(classID)
	switch {
	case name == "":
		return fmt.Errorf("auth.SignUp: %w: name is required", ErrInvalidProfile)
	case grade < 1 || grade > 12:
		return fmt.Errorf("auth.SignUp: %w: grade must be 1-12", ErrInvalidProfile)
	case classID == "":
		return fmt.Errorf("auth.SignUp: %w: class is required", ErrInvalidProfile)
	}
	now := m.now()
	return m.localLogin("auth.SignUp", domain.Student{
		ID:        fmt.Sprintf("student_%d", now.UnixMilli()),
		Name:      name,
		Grade:     grade,
		ClassID:   classID,
		CreatedAt: now.UTC(),
	})
}

// DemoSignIn logs in the fixed demo student.
func (m *Machine) DemoSignIn() error {
	return m.localLogin("auth.DemoSignIn", DemoStudent(m.now()))
}

// DemoStudent returns the fixed demo profile.
func DemoStudent(now time.Time) domain.Student {
	return domain.Student{
		ID:        "demo_student_123",
		Name:      "Demo Student",
		Grade:     4,
		ClassID:   "demo-class",
		CreatedAt: now.UTC(),
	}
}

func (m *Machine) localLogin(op string, s domain.Student) error {
	token, expiresAt, err := m.mintToken(s)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return m.commitChecked(op, domain.AuthSession{
		Role:      domain.RoleStudent,
		Token:     token,
		ExpiresAt: expiresAt,
		Student:   &s,
	})
}

// localClaims are the claims of a locally minted student token.
type localClaims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func (m *Machine) mintToken(s domain.Student) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(LocalTokenTTL).Truncate(time.Second).UTC()
	claims := localClaims{
		Role: string(domain.RoleStudent),
		Name: s.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tess-local",
			Subject:   s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *Machine) commitChecked(op string, sess domain.AuthSession) error {
	if sess.Token == "" || !m.now().Before(sess.ExpiresAt) {
		return fmt.Errorf("%s: %w: session already expired", op, ErrAuthFailed)
	}
	if err := m.commit(sess); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// commit writes sess to the store and to memory in one transition.
func (m *Machine) commit(sess domain.AuthSession) error {
	var profile any
	switch sess.Role {
	case domain.RoleStudent:
		profile = sess.Student
	case domain.RoleStaff:
		profile = sess.Educator
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err = m.creds.Set(map[string]string{
		credstore.KeyToken:     sess.Token,
		credstore.KeyProfile:   string(data),
		credstore.KeyRole:      string(sess.Role),
		credstore.KeyExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		if rmErr := m.creds.Remove(credstore.Keys...); rmErr != nil {
			m.log.Error("roll back credentials", "err", rmErr)
		}
		m.setToken("")
		m.state.ClearAuth()
		return fmt.Errorf("persist credentials: %w", err)
	}

	m.setToken(sess.Token)
	m.state.SetAuth(appstate.AuthState{Phase: appstate.AuthAuthenticated, Session: sess})
	m.log.Info("logged in", "role", sess.Role, "name", sess.DisplayName(), "expires_at", sess.ExpiresAt)
	return nil
}

// Logout clears the session, the credential store and the flow. Calling
// it again is a no-op apart from re-clearing the store.
func (m *Machine) Logout() error {
	m.mu.Lock()
	hooks := append([]func(){}, m.onLogout...)
	m.mu.Unlock()

	if m.state.Snapshot().Auth.Phase == appstate.AuthAuthenticated {
		for _, fn := range hooks {
			fn()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Snapshot().Auth.Phase != appstate.AuthUnauthenticated {
		m.state.ClearAuth()
		m.log.Info("logged out")
	}
	m.setToken("")
	if err := m.creds.Remove(credstore.Keys...); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

// CheckExpiry logs out an authenticated session whose expiry has passed.
// It reports whether a logout happened.
func (m *Machine) CheckExpiry() bool {
	a := m.state.Snapshot().Auth
	if a.Phase != appstate.AuthAuthenticated || m.now().Before(a.Session.ExpiresAt) {
		return false
	}
	m.log.Info("session expired", "expires_at", a.Session.ExpiresAt)
	if err := m.Logout(); err != nil {
		m.log.Warn("logout after expiry", "err", err)
	}
	return true
}

func (m *Machine) setToken(token string) {
	if m.tokens != nil {
		m.tokens.SetToken(token)
	}
}

// UserMessage turns a login error into text for the login screen.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, client.ErrInvalidCredentials):
		return "Invalid credentials. For demo purposes, use: demo@school.edu / demo123"
	case errors.Is(err, ErrInvalidProfile):
		return "Please enter your name, a grade from 1 to 12 and your class."
	case errors.Is(err, context.Canceled):
		return ""
	case client.IsRetryable(err):
		return "Could not reach the server. Please try again."
	}
	return "Login failed. Please try again."
}
