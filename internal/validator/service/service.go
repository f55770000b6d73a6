// Package service accepts certificate validation requests.
package service

import (
	"context"
	"time"
	"unicode"

	txmodels "gmq/internal/transaction/models"
	"gmq/internal/validator/models"
	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/params"
)

const (
	minTxIDLength = 15
	maxTxIDLength = 40
)

type Store interface {
	Find(ctx context.Context, id string) (*models.Validator, error)
	Save(ctx context.Context, v *models.Validator) error
}

type Service struct {
	store Store
	now   func() time.Time
	loc   *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the request and saves it, which enqueues the check.
func (s *Service) Create(ctx context.Context, p params.Params) (*models.Validator, error) {
	if err := p.Whitelist("tx_id", "ssn", "passport", "birth_date"); err != nil {
		return nil, err
	}
	v := &models.Validator{ID: models.NewID(), State: models.StateNew}

	txID, ok := p.String("tx_id")
	if !ok {
		return nil, dErrors.NewField(dErrors.AppMissingID, "tx_id", "tx_id is required")
	}
	if !validTxID(txID) {
		return nil, dErrors.NewField(dErrors.AppInvalidTransactionID, "tx_id", "tx_id is invalid")
	}
	v.TxID = txID

	ssn, hasSSN := p.String("ssn")
	passport, hasPassport := p.String("passport")
	switch {
	case !hasSSN && !hasPassport:
		return nil, dErrors.NewField(dErrors.AppMissingSSN, "ssn", "ssn or passport is required")
	case hasSSN:
		ssn = txmodels.NormalizeSSN(ssn)
		if !txmodels.ValidSSN(ssn) {
			return nil, dErrors.NewField(dErrors.AppInvalidSSN, "ssn", "ssn is invalid")
		}
		v.SSN = ssn
	}
	if hasPassport {
		if !txmodels.ValidFreeText(passport) {
			return nil, dErrors.NewField(dErrors.AppInvalidSSN, "passport", "passport is invalid")
		}
		v.Passport = passport
	}

	birth, _ := p.String("birth_date")
	if err := txmodels.ValidateBirthDate(birth, s.now(), s.loc); err != nil {
		return nil, err
	}
	v.BirthDate = birth

	if err := s.store.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Find loads a validation request for polling its result.
func (s *Service) Find(ctx context.Context, id string) (*models.Validator, error) {
	if id == "" {
		return nil, dErrors.NewField(dErrors.AppMissingID, "id", "id is required")
	}
	return s.store.Find(ctx, id)
}

func validTxID(id string) bool {
	if len(id) < minTxIDLength || len(id) > maxTxIDLength {
		return false
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
