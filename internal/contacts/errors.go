package contacts

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/apollo"
)

// Step names the pipeline stage a failure belongs to.
type Step string

const (
	StepValidate Step = "validate"
	StepSearch   Step = "search"
	StepEnrich   Step = "enrich"
	StepInternal Step = "internal"
)

const (
	missingFieldsMsg = "Both title and location are required"
	missingAPIKeyMsg = "people search api key is not configured"
)

// Sentinel causes carried by StepError.
var (
	ErrMissingAPIKey = eris.New(missingAPIKeyMsg)
	ErrMissingFields = eris.New(missingFieldsMsg)
)

// StepError is the single failure type returned by the pipeline.
type StepError struct {
	Step    Step
	Status  int
	Message string
	// Details holds the vendor response body for upstream failures.
	Details any
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("contacts: %s: %s", e.Step, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is an upstream one with a status
// that is worth retrying later.
func (e *StepError) Retryable() bool {
	if e.Step != StepSearch && e.Step != StepEnrich {
		return false
	}
	return resilience.IsTransientHTTPStatus(e.Status)
}

// ValidationError builds a 400 failure of the validate step.
func ValidationError(msg string, err error) *StepError {
	return &StepError{Step: StepValidate, Status: http.StatusBadRequest, Message: msg, Err: err}
}

func configError() *StepError {
	return &StepError{Step: StepInternal, Status: http.StatusInternalServerError, Message: missingAPIKeyMsg, Err: ErrMissingAPIKey}
}

// upstreamError maps a vendor client failure to a StepError. Vendor status
// codes pass through; transport failures become 502.
func upstreamError(step Step, err error) *StepError {
	var apiErr *apollo.APIError
	if errors.As(err, &apiErr) {
		return &StepError{
			Step:    step,
			Status:  apiErr.StatusCode,
			Message: apiErr.Message(),
			Details: apiErr.Body,
			Err:     err,
		}
	}
	return &StepError{Step: step, Status: http.StatusBadGateway, Message: err.Error(), Err: err}
}

// AsStepError returns err as a StepError, treating unknown errors as
// internal failures.
func AsStepError(err error) *StepError {
	var se *StepError
	if errors.As(err, &se) {
		return se
	}
	return &StepError{Step: StepInternal, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}
