package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gmq/internal/transaction/models"
	dErrors "gmq/pkg/domain-errors"
	"gmq/pkg/platform/params"
)

var createFields = []string{
	"email", "ssn", "passport", "license_number",
	"first_name", "middle_name", "last_name", "mother_last_name",
	"residency", "birth_date", "IP", "reason", "system_address",
	"created_by", "language", "emit_certificate_type",
}

// Create validates a certificate request payload and returns a new,
// unsaved transaction. Saving it starts the pipeline.
func (s *Service) Create(ctx context.Context, p params.Params) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.Whitelist(createFields...); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		ID:       models.NewID(),
		State:    models.StateNew,
		Status:   models.StatusReceived,
		Location: models.LocationGMQ,
		Language: models.LanguageSpanish,
	}

	email, ok := p.String("email")
	switch {
	case !ok:
		return nil, missing(dErrors.AppMissingEmail, "email")
	case !models.ValidEmail(strings.ToLower(email)):
		return nil, invalid(dErrors.AppInvalidEmail, "email")
	}
	tx.Email = strings.ToLower(email)

	ssn, hasSSN := p.String("ssn")
	passport, hasPassport := p.String("passport")
	if !hasSSN && !hasPassport {
		return nil, missing(dErrors.AppMissingSSN, "ssn")
	}
	if hasSSN {
		ssn = models.NormalizeSSN(ssn)
		if !models.ValidSSN(ssn) {
			return nil, invalid(dErrors.AppInvalidSSN, "ssn")
		}
		tx.SSN = ssn
	}
	if hasPassport {
		if !models.ValidFreeText(passport) {
			return nil, invalid(dErrors.AppInvalidSSN, "passport")
		}
		tx.Passport = passport
	}
	if license, ok := p.String("license_number"); ok {
		if !models.ValidLicense(license) {
			return nil, invalid(dErrors.AppInvalidLicense, "license_number")
		}
		tx.LicenseNumber = license
	}

	var err error
	if tx.FirstName, err = name(p, "first_name", true, dErrors.AppMissingFirstName, dErrors.AppInvalidFirstName); err != nil {
		return nil, err
	}
	if tx.MiddleName, err = name(p, "middle_name", false, 0, dErrors.AppInvalidMiddleName); err != nil {
		return nil, err
	}
	if tx.LastName, err = name(p, "last_name", true, dErrors.AppMissingLastName, dErrors.AppInvalidLastName); err != nil {
		return nil, err
	}
	if tx.MotherLastName, err = name(p, "mother_last_name", false, 0, dErrors.AppInvalidMotherLastName); err != nil {
		return nil, err
	}

	birth, _ := p.String("birth_date")
	if err := models.ValidateBirthDate(birth, s.now(), s.loc); err != nil {
		return nil, err
	}
	tx.BirthDate = birth

	if tx.Residency, err = text(p, "residency", dErrors.AppMissingResidency, dErrors.AppInvalidResidency); err != nil {
		return nil, err
	}
	ip, ok := p.String("IP")
	switch {
	case !ok:
		return nil, missing(dErrors.AppMissingIP, "IP")
	case !models.ValidIP(ip):
		return nil, invalid(dErrors.AppInvalidIP, "IP")
	}
	tx.IP = ip
	if tx.Reason, err = text(p, "reason", dErrors.AppMissingReason, dErrors.AppInvalidReason); err != nil {
		return nil, err
	}

	if lang, ok := p.String("language"); ok {
		l, valid := models.ParseLanguage(lang)
		if !valid {
			return nil, invalid(dErrors.AppInvalidLanguage, "language")
		}
		tx.Language = l
	}
	tx.SystemAddress, _ = p.String("system_address")
	tx.CreatedBy, _ = p.String("created_by")
	tx.EmitCertificateType, _ = p.String("emit_certificate_type")
	return tx, nil
}

type review struct {
	analystID      string
	fullname       string
	approvedAt     time.Time
	analystTxID    string
	internalStatus string
	decision       int
}

func parseReview(p params.Params) (review, error) {
	var r review
	var ok bool

	approval, ok := p.String("analyst_approval_datetime")
	if !ok {
		return r, missing(dErrors.AppMissingAnalystApproval, "analyst_approval_datetime")
	}
	at, err := time.Parse(time.RFC3339, approval)
	if err != nil {
		return r, invalid(dErrors.AppInvalidApprovalDate, "analyst_approval_datetime")
	}
	r.approvedAt = at

	if r.analystTxID, ok = p.String("analyst_transaction_id"); !ok {
		return r, missing(dErrors.AppMissingAnalystTransactionID, "analyst_transaction_id")
	}
	if r.internalStatus, ok = p.String("analyst_internal_status_id"); !ok {
		return r, missing(dErrors.AppMissingAnalystInternalStatus, "analyst_internal_status_id")
	}

	decision, ok := p.String("decision_code")
	if !ok {
		return r, missing(dErrors.AppMissingDecision, "decision_code")
	}
	r.decision, err = strconv.Atoi(decision)
	if err != nil || !models.ValidDecision(r.decision) {
		return r, invalid(dErrors.AppInvalidDecision, "decision_code")
	}

	if r.analystID, ok = p.String("analyst_id"); !ok {
		return r, missing(dErrors.AppMissingAnalystID, "analyst_id")
	}
	if !models.ValidFreeText(r.analystID) {
		return r, invalid(dErrors.AppInvalidAnalystID, "analyst_id")
	}
	fullname, ok := p.String("analyst_fullname")
	if !ok {
		return r, missing(dErrors.AppMissingAnalystFullname, "analyst_fullname")
	}
	r.fullname = models.NormalizeName(fullname)
	if !models.ValidName(r.fullname) {
		return r, invalid(dErrors.AppInvalidAnalystFullname, "analyst_fullname")
	}
	return r, nil
}

func name(p params.Params, field string, required bool, missingCode, invalidCode int) (string, error) {
	v, ok := p.String(field)
	if !ok {
		if required {
			return "", missing(missingCode, field)
		}
		return "", nil
	}
	v = models.NormalizeName(v)
	if !models.ValidName(v) {
		return "", invalid(invalidCode, field)
	}
	return v, nil
}

func text(p params.Params, field string, missingCode, invalidCode int) (string, error) {
	v, ok := p.String(field)
	if !ok {
		return "", missing(missingCode, field)
	}
	if !models.ValidFreeText(v) {
		return "", invalid(invalidCode, field)
	}
	return v, nil
}

func missing(code int, field string) error {
	return dErrors.NewField(code, field, field+" is required")
}

func invalid(code int, field string) error {
	return dErrors.NewField(code, field, field+" is invalid")
}
