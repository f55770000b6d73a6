package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gmq/internal/jobs"
	"gmq/internal/platform/kv"
	"gmq/internal/queue"
	"gmq/internal/stats"
	"gmq/internal/transaction/models"
	"gmq/internal/transaction/store"
	dErrors "gmq/pkg/domain-errors"
	audit "gmq/pkg/platform/audit"
	"gmq/pkg/platform/audit/publisher"
	"gmq/pkg/platform/audit/store/memory"
	"gmq/pkg/platform/params"
)

type ServiceSuite struct {
	suite.Suite
	ctx    context.Context
	now    time.Time
	kv     *kv.MemoryStore
	store  *store.Store
	events *memory.InMemoryStore
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.kv = kv.NewMemory(kv.WithClock(s.clock))
	s.store = store.New(s.kv, queue.NewClient(s.kv, queue.WithClientClock(s.clock)), store.WithClock(s.clock))
	s.events = memory.NewInMemoryStore()
}

func (s *ServiceSuite) clock() time.Time { return s.now }

func (s *ServiceSuite) service(opts ...Option) *Service {
	base := []Option{
		WithClock(s.clock),
		WithAuditor(publisher.NewPublisher(s.events)),
	}
	return New(s.store, append(base, opts...)...)
}

func validRequest() params.Params {
	return params.Params{
		"email":       "Ana@Example.com",
		"ssn":         "123-45-6789",
		"first_name":  " Ana ",
		"last_name":   "Rivera",
		"birth_date":  "15/06/1990",
		"residency":   "San Juan",
		"IP":          "10.0.0.1",
		"reason":      "Empleo",
		"language":    "english",
		"created_by":  "pr.gov",
		"middle_name": "María",
	}
}

func (s *ServiceSuite) queued() []queue.Job {
	raw, err := s.kv.LRange(s.ctx, queue.Key(queue.Main), 0, -1)
	s.Require().NoError(err)
	out := make([]queue.Job, len(raw))
	for i, r := range raw {
		out[i], err = queue.Decode(r)
		s.Require().NoError(err)
	}
	return out
}

func (s *ServiceSuite) counters() stats.Snapshot {
	snap, err := stats.New(s.kv, nil).Get(s.ctx)
	s.Require().NoError(err)
	return snap
}

func (s *ServiceSuite) appCode(err error) int {
	s.Require().Error(err)
	de, ok := dErrors.As(err)
	s.Require().True(ok, "expected a domain error, got %v", err)
	return de.AppCode
}

// saved creates and persists a transaction, then moves it to state.
func (s *ServiceSuite) saved(state models.State) *models.Transaction {
	svc := s.service()
	tx, err := svc.Create(s.ctx, validRequest())
	s.Require().NoError(err)
	s.Require().NoError(svc.Save(s.ctx, tx))
	if state != models.StateReceived {
		tx.Force(state, models.EventRequeue, s.now)
		s.Require().NoError(s.store.Save(s.ctx, tx))
	}
	return tx
}

func (s *ServiceSuite) TestCreateAndSaveStartsPipeline() {
	svc := s.service()
	tx, err := svc.Create(s.ctx, validRequest())
	s.Require().NoError(err)

	s.Equal(models.StateNew, tx.State)
	s.Equal(models.StatusReceived, tx.Status)
	s.Equal("ana@example.com", tx.Email)
	s.Equal("123456789", tx.SSN)
	s.Equal("Ana", tx.FirstName)
	s.Equal(models.LanguageEnglish, tx.Language)
	s.Equal(models.LocationGMQ, tx.Location)
	s.Empty(s.queued(), "create does not persist")

	s.Require().NoError(svc.Save(s.ctx, tx))
	s.Equal(models.StateReceived, tx.State)
	queued := s.queued()
	s.Require().Len(queued, 1)
	s.Equal(jobs.ReceiptEmail, queued[0].Class)
	s.EqualValues(1, s.counters().Pending)

	events, err := s.events.ListByTransaction(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionTransactionCreated, events[0].Action)
}

func (s *ServiceSuite) TestCreateDefaultsToSpanish() {
	p := validRequest()
	delete(p, "language")
	tx, err := s.service().Create(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(models.LanguageSpanish, tx.Language)
}

func (s *ServiceSuite) TestCreateAcceptsPassportWithoutSSN() {
	p := validRequest()
	delete(p, "ssn")
	p["passport"] = "X1234567"
	tx, err := s.service().Create(s.ctx, p)
	s.Require().NoError(err)
	s.Equal("X1234567", tx.Passport)
	s.Empty(tx.SSN)
}

func (s *ServiceSuite) TestCreateValidation() {
	cases := []struct {
		name   string
		mutate func(params.Params)
		code   int
	}{
		{"unknown key", func(p params.Params) { p["admin"] = true }, dErrors.AppInvalidParameters},
		{"missing email", func(p params.Params) { delete(p, "email") }, dErrors.AppMissingEmail},
		{"bad email", func(p params.Params) { p["email"] = "ana@" }, dErrors.AppInvalidEmail},
		{"no ssn or passport", func(p params.Params) { delete(p, "ssn") }, dErrors.AppMissingSSN},
		{"bad ssn", func(p params.Params) { p["ssn"] = "12345" }, dErrors.AppInvalidSSN},
		{"bad license", func(p params.Params) { p["license_number"] = "AB-12" }, dErrors.AppInvalidLicense},
		{"missing first name", func(p params.Params) { delete(p, "first_name") }, dErrors.AppMissingFirstName},
		{"bad first name", func(p params.Params) { p["first_name"] = "Ana9" }, dErrors.AppInvalidFirstName},
		{"bad middle name", func(p params.Params) { p["middle_name"] = "<b>" }, dErrors.AppInvalidMiddleName},
		{"missing last name", func(p params.Params) { delete(p, "last_name") }, dErrors.AppMissingLastName},
		{"bad mother last name", func(p params.Params) { p["mother_last_name"] = "R2" }, dErrors.AppInvalidMotherLastName},
		{"missing birth date", func(p params.Params) { delete(p, "birth_date") }, dErrors.AppMissingBirthDate},
		{"bad birth date", func(p params.Params) { p["birth_date"] = "1990-06-15" }, dErrors.AppInvalidBirthDate},
		{"under age", func(p params.Params) { p["birth_date"] = "01/01/2010" }, dErrors.AppNotOldEnough},
		{"missing residency", func(p params.Params) { delete(p, "residency") }, dErrors.AppMissingResidency},
		{"missing IP", func(p params.Params) { delete(p, "IP") }, dErrors.AppMissingIP},
		{"bad IP", func(p params.Params) { p["IP"] = "999.1.1.1" }, dErrors.AppInvalidIP},
		{"missing reason", func(p params.Params) { delete(p, "reason") }, dErrors.AppMissingReason},
		{"bad language", func(p params.Params) { p["language"] = "french" }, dErrors.AppInvalidLanguage},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			p := validRequest()
			tc.mutate(p)
			_, err := s.service().Create(s.ctx, p)
			s.Equal(tc.code, s.appCode(err))
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *ServiceSuite) TestCertificateReady() {
	tx := s.saved(models.StateWaitingForCertificate)

	got, err := s.service().CertificateReady(s.ctx, tx.ID, params.Params{"certificate_base64": "JVBERi0xLjQK"})
	s.Require().NoError(err)
	s.True(got.CertificateBase64)
	s.Equal(models.StateCertificateReady, got.State)

	queued := s.queued()
	s.Require().Len(queued, 2)
	s.Equal(jobs.GenerateCertificate, queued[1].Class)

	found, err := s.store.Find(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.True(found.CertificateBase64)
}

func (s *ServiceSuite) TestCertificateReadyValidation() {
	tx := s.saved(models.StateWaitingForCertificate)
	svc := s.service()

	_, err := svc.CertificateReady(s.ctx, tx.ID, params.Params{})
	s.Equal(dErrors.AppMissingCertificateBase64, s.appCode(err))

	_, err = svc.CertificateReady(s.ctx, tx.ID, params.Params{"certificate_base64": "%%%"})
	s.Equal(dErrors.AppInvalidCertificate, s.appCode(err))

	_, err = svc.CertificateReady(s.ctx, "", params.Params{"certificate_base64": "JVBERi0xLjQK"})
	s.Equal(dErrors.AppMissingID, s.appCode(err))

	_, err = svc.CertificateReady(s.ctx, "PRCAPMISSING", params.Params{"certificate_base64": "JVBERi0xLjQK"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCertificateReadyRejectsWrongState() {
	tx := s.saved(models.StateReceived)
	_, err := s.service().CertificateReady(s.ctx, tx.ID, params.Params{"certificate_base64": "JVBERi0xLjQK"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Len(s.queued(), 1)
}

func (s *ServiceSuite) TestRequeueRetrieval() {
	tx := s.saved(models.StateFailedRetrieval)
	before := s.counters()

	got, err := s.service(WithRetrieveMode(true, true)).RequeueJob(s.ctx, tx.ID, models.StageRetrieval, "ops")
	s.Require().NoError(err)
	s.Equal(models.StateWaitingForCertificate, got.State)

	queued := s.queued()
	s.Require().Len(queued, 2)
	s.Equal(jobs.RetrieveCertificate, queued[1].Class)
	args, err := queue.DecodeArgs[jobs.RetrieveArgs](queued[1].Payload())
	s.Require().NoError(err)
	s.True(args.CallbackRequested)

	s.Equal(before, s.counters(), "requeue never counts")
	n, err := s.kv.LLen(s.ctx, store.ListKey())
	s.Require().NoError(err)
	s.EqualValues(1, n)

	events, err := s.events.ListByTransaction(s.ctx, tx.ID)
	s.Require().NoError(err)
	s.Equal(audit.ActionTransactionRequeued, events[len(events)-1].Action)
	s.Equal("ops", events[len(events)-1].ActorID)
}

func (s *ServiceSuite) TestRequeueGenerationNeedsCertificate() {
	tx := s.saved(models.StateFailedGeneration)
	_, err := s.service().RequeueJob(s.ctx, tx.ID, models.StageGeneration, "ops")
	s.Equal(dErrors.AppMissingCertificateBase64, s.appCode(err))

	_, err = s.service().RequeueJob(s.ctx, tx.ID, models.Stage("billing"), "ops")
	s.Equal(dErrors.AppInvalidParameters, s.appCode(err))
}

func reviewParams(decision string) params.Params {
	return params.Params{
		"analyst_id":                 "A-17",
		"analyst_fullname":           "Luis Ortiz",
		"analyst_approval_datetime":  "2024-03-01T10:00:00Z",
		"analyst_transaction_id":     "PRPD-991",
		"analyst_internal_status_id": "7",
		"decision_code":              decision,
	}
}

func (s *ServiceSuite) TestReviewRejected() {
	tx := s.saved(models.StateManualReview)

	got, err := s.service().ReviewComplete(s.ctx, tx.ID, reviewParams("200"))
	s.Require().NoError(err)
	s.Equal(models.StateRapsheetValidationFailed, got.State)
	s.Equal(models.StatusCompleted, got.Status)
	s.Require().NotNil(got.IdentityValidated)
	s.False(*got.IdentityValidated)
	s.Equal(models.DecisionRejected, got.DecisionCode)

	queued := s.queued()
	s.Require().Len(queued, 2)
	s.Equal(jobs.Email, queued[1].Class)
	args, err := queue.DecodeArgs[jobs.EmailArgs](queued[1].Payload())
	s.Require().NoError(err)
	s.Equal(tx.Email, args.To)

	snap := s.counters()
	s.EqualValues(0, snap.Pending)
	s.EqualValues(1, snap.Completed)
}

func (s *ServiceSuite) TestReviewApprovedRetrieveMode() {
	tx := s.saved(models.StateManualReview)

	got, err := s.service(WithRetrieveMode(true, false)).ReviewComplete(s.ctx, tx.ID, reviewParams("100"))
	s.Require().NoError(err)
	s.Equal(models.StateReviewCompleted, got.State)
	s.Equal("Luis Ortiz", got.AnalystFullname)

	queued := s.queued()
	s.Require().Len(queued, 2)
	s.Equal(jobs.RetrieveCertificate, queued[1].Class)
	s.EqualValues(1, s.counters().Pending)
}

func (s *ServiceSuite) TestReviewApprovedWaitsForCallback() {
	tx := s.saved(models.StateManualReview)

	got, err := s.service().ReviewComplete(s.ctx, tx.ID, reviewParams("100"))
	s.Require().NoError(err)
	s.Equal(models.StateWaitingForCertificate, got.State)
	s.Len(s.queued(), 1)
}

func (s *ServiceSuite) TestReviewValidation() {
	tx := s.saved(models.StateManualReview)
	cases := map[string]int{
		"analyst_approval_datetime":  dErrors.AppMissingAnalystApproval,
		"analyst_transaction_id":     dErrors.AppMissingAnalystTransactionID,
		"analyst_internal_status_id": dErrors.AppMissingAnalystInternalStatus,
		"decision_code":              dErrors.AppMissingDecision,
		"analyst_id":                 dErrors.AppMissingAnalystID,
		"analyst_fullname":           dErrors.AppMissingAnalystFullname,
	}
	for field, code := range cases {
		s.Run(field, func() {
			p := reviewParams("100")
			delete(p, field)
			_, err := s.service().ReviewComplete(s.ctx, tx.ID, p)
			s.Equal(code, s.appCode(err))
		})
	}

	p := reviewParams("300")
	_, err := s.service().ReviewComplete(s.ctx, tx.ID, p)
	s.Equal(dErrors.AppInvalidDecision, s.appCode(err))

	p = reviewParams("100")
	p["analyst_approval_datetime"] = "yesterday"
	_, err = s.service().ReviewComplete(s.ctx, tx.ID, p)
	s.Equal(dErrors.AppInvalidApprovalDate, s.appCode(err))
}

func (s *ServiceSuite) TestReviewOutsideManualReview() {
	tx := s.saved(models.StateReceiptSent)
	_, err := s.service().ReviewComplete(s.ctx, tx.ID, reviewParams("100"))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestRecentSkipsExpired() {
	first := s.saved(models.StateReceived)
	s.now = s.now.Add(time.Hour)
	second := s.saved(models.StateReceived)
	s.Require().NoError(s.kv.Del(s.ctx, store.Key(first.ID)))

	txs, err := s.service().Recent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(txs, 1)
	s.Equal(second.ID, txs[0].ID)
}
