// Package verification issues and checks the six-digit phone codes used
// during sign-up.
package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/safar/hive-store/internal/metrics"
	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	CodeTTL = 10 * time.Minute

	codeMin = 100000
	codeMax = 999999
)

var (
	ErrInvalidCode = errors.New("invalid code")
	ErrExpiredCode = errors.New("code expired")
)

// Sender delivers a freshly issued code to the phone owner.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// LogSender writes the code to the log instead of texting it.
type LogSender struct {
	log logrus.FieldLogger
}

func NewLogSender(log logrus.FieldLogger) *LogSender {
	return &LogSender{log: log}
}

func (l *LogSender) SendCode(ctx context.Context, phone, code string) error {
	l.log.WithFields(logrus.Fields{"phone": phone, "code": code}).Info("verification code issued")
	return nil
}

type Service struct {
	codes   store.Codes
	sender  Sender
	metrics *metrics.Registry
	log     logrus.FieldLogger
	now     func() time.Time
	newCode func() (string, error)
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newCode = gen }
}

func NewService(codes store.Codes, sender Sender, m *metrics.Registry, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		codes:   codes,
		sender:  sender,
		metrics: m,
		log:     log,
		now:     time.Now,
		newCode: randomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue stores a new code for phone, replacing any pending one, and hands it
// to the sender.
func (s *Service) Issue(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return store.NewValidationError("phone", "phone number required")
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	vc := models.VerificationCode{
		Phone:     phone,
		Code:      code,
		ExpiresAt: s.now().Add(CodeTTL).UTC().Truncate(time.Microsecond),
	}
	if err := s.codes.PutCode(ctx, vc); err != nil {
		return err
	}

	s.metrics.Verifications.WithLabelValues("issued").Inc()

	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// Consume checks code against the pending one for phone. The pending code is
// removed whatever the outcome, so every code can be tried exactly once.
func (s *Service) Consume(ctx context.Context, phone, code string) error {
	phone = strings.TrimSpace(phone)
	code = strings.TrimSpace(code)
	if phone == "" || code == "" {
		return store.NewValidationError("", "phone and code required")
	}

	stored, err := s.codes.TakeCode(ctx, phone)
	if err != nil {
		return err
	}

	outcome := "verified"
	switch {
	case stored == nil, stored.Code != code:
		outcome, err = "invalid", ErrInvalidCode
	case stored.Expired(s.now()):
		outcome, err = "expired", ErrExpiredCode
	}

	s.metrics.Verifications.WithLabelValues(outcome).Inc()
	s.log.WithFields(logrus.Fields{"phone": phone, "outcome": outcome}).Debug("verification attempt")
	return err
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
