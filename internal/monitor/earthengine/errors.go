package earthengine

import (
	"errors"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/i474232898/pm-monitor/internal/common"
)

// Bootstrap errors. All of them are fatal for the process.
var (
	ErrMissingServiceAccount = errors.New("earthengine: service account is not configured")
	ErrMissingKeyFile        = errors.New("earthengine: key file is not readable")
	ErrAccountMismatch       = errors.New("earthengine: key file does not belong to the service account")
	ErrMissingProject        = errors.New("earthengine: cloud project is not configured")
	ErrCredentialRejected    = errors.New("earthengine: credential rejected")
)

// noDataHints are fragments of evaluation errors Earth Engine raises when the
// filtered collection was empty, as opposed to a broken request.
var noDataHints = []string{
	"empty collection",
	"collection is empty",
	"no bands",
	"did not match any bands",
	"parameter 'image' is required",
	"parameter 'input' is required",
}

// isNoData reports whether err means "the computation had nothing to work on".
func isNoData(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusBadRequest {
		return false
	}
	return common.HasAny(strings.ToLower(gerr.Message), noDataHints...)
}

// isRetryable reports whether another attempt could succeed.
func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
	}
	return true
}
