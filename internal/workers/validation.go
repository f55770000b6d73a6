package workers

import (
	"context"
	"encoding/json"
	"net/http"

	"gmq/internal/jobs"
	"gmq/internal/queue"
	"gmq/internal/rci"
	valmodels "gmq/internal/validator/models"
)

// CertificateValidationWorker checks a third party's certificate against RCI.
type CertificateValidationWorker struct{ *Set }

func (w *CertificateValidationWorker) Handle(ctx context.Context, raw json.RawMessage) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	v, err := w.validators.Find(ctx, args.ID)
	if err != nil {
		return err
	}
	if v.Finished() {
		return nil
	}
	v.State = valmodels.StateValidating

	resp, err := w.rci.Validate(ctx, v.TxID)
	if err != nil {
		return w.validationRetry(ctx, v, err)
	}
	switch {
	case resp.OK():
		res, err := rci.DecodeValidation(resp.Body)
		if err != nil {
			v.State = valmodels.StateFailed
			v.Message = err.Error()
			w.saveValidator(ctx, v)
			return err
		}
		v.Name = res.Name
		v.GeneratedDate = res.GeneratedDate
		v.RemoteBirthDate = res.BirthDate
		v.Resolve(valmodels.ResultValid, 0, "")
	case resp.Status == http.StatusBadRequest && resp.Remote != nil && resp.Remote.Code == rci.CodeNotFound:
		v.Resolve(valmodels.ResultNotFound, resp.Remote.Code, resp.Remote.Message)
	case resp.Status == http.StatusBadRequest && resp.Remote != nil &&
		(resp.Remote.Code == rci.CodeMissingParameters || resp.Remote.Code == rci.CodeInvalidLength):
		v.Resolve(valmodels.ResultInvalid, resp.Remote.Code, resp.Remote.Message)
	default:
		return w.validationRetry(ctx, v, remoteAnswer(resp))
	}
	return w.validators.Save(ctx, v)
}

func (w *CertificateValidationWorker) validationRetry(ctx context.Context, v *valmodels.Validator, cause error) error {
	v.State = valmodels.StateRetrying
	v.ErrorCount++
	v.LastErrorMessage = cause.Error()
	w.saveValidator(ctx, v)
	return cause
}

func (w *CertificateValidationWorker) saveValidator(ctx context.Context, v *valmodels.Validator) {
	if err := w.validators.Save(ctx, v); err != nil {
		w.logger.WarnContext(ctx, "save validator failed", "validator_id", v.ID, "error", err)
	}
}

// Exhausted records that no answer could be obtained.
func (w *CertificateValidationWorker) Exhausted(ctx context.Context, raw json.RawMessage, cause error) error {
	args, err := queue.DecodeArgs[jobs.IDArgs](raw)
	if err != nil {
		return err
	}
	v, err := w.validators.Find(ctx, args.ID)
	if err != nil {
		return err
	}
	if v.Finished() {
		return nil
	}
	v.State = valmodels.StateFailed
	if cause != nil {
		v.Message = cause.Error()
	}
	return w.validators.Save(ctx, v)
}
