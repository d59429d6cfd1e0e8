// Package authn is the SPI implementation towards the bank's authentication
// and SCA challenge delivery systems. The in-memory implementation is used
// for tests and demo deployments; production wires the bank's own connector.
package authn

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"xs2a.org/internal/sca"
)

// HashPassword hashes a plaintext PSU password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// psuRecord is one registered PSU with its credentials and SCA methods.
type psuRecord struct {
	passwordHash string
	methods      []sca.ScaMethod
	otp          string
}

// InMemory implements sca.Authenticator against a registered set of PSUs.
type InMemory struct {
	mu   sync.RWMutex
	psus map[string]*psuRecord
}

var _ sca.Authenticator = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{psus: make(map[string]*psuRecord)}
}

// Register adds a PSU with a bcrypt-hashed password, its available SCA
// methods and the OTP the challenge expects. An empty methods list means the
// PSU is exempt from SCA.
func (m *InMemory) Register(psuID, password string, methods []sca.ScaMethod, otp string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.psus[psuID] = &psuRecord{passwordHash: hash, methods: methods, otp: otp}
	return nil
}

func (m *InMemory) Methods(ctx context.Context, psu sca.PsuData) ([]sca.ScaMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.psus[psu.ID]
	if !ok {
		return nil, fmt.Errorf("authn: unknown psu %q", psu.ID)
	}
	out := make([]sca.ScaMethod, len(rec.methods))
	copy(out, rec.methods)
	return out, nil
}

func (m *InMemory) VerifyCredentials(ctx context.Context, psu sca.PsuData, password string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.psus[psu.ID]
	if !ok {
		return sca.ErrAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.passwordHash), []byte(password)); err != nil {
		return sca.ErrAuthenticationFailed
	}
	return nil
}

func (m *InMemory) StartChallenge(ctx context.Context, a *sca.Authorisation) (*sca.ChallengeData, error) {
	if a.ChosenScaMethod != nil && a.ChosenScaMethod.Decoupled {
		// Decoupled flows only notify; the PSU confirms in a companion app.
		return &sca.ChallengeData{
			AdditionalInfo: "Please confirm the operation in your banking app.",
		}, nil
	}
	return &sca.ChallengeData{
		Data:         []string{"An OTP has been sent to your registered device."},
		OtpMaxLength: 6,
		OtpFormat:    "integer",
	}, nil
}

func (m *InMemory) ConfirmChallenge(ctx context.Context, a *sca.Authorisation, otp string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.psus[a.Psu.ID]
	if !ok {
		return sca.ErrAuthenticationFailed
	}
	if subtle.ConstantTimeCompare([]byte(rec.otp), []byte(otp)) != 1 {
		return sca.ErrAuthenticationFailed
	}
	return nil
}
