package fetcher

import (
	"errors"

	"posreports/internal/core"
)

// Diagnostic kinds.
const (
	KindConfigurationMissing = "configuration_missing"
	KindCredentialMissing    = "credential_missing"
	KindCredentialInvalid    = "credential_invalid"
	KindRemoteNotFound       = "remote_not_found"
	KindRemoteUnavailable    = "remote_unavailable"
	KindSnapshotUnreadable   = "snapshot_unreadable"
)

// Diagnostic is a problem met while resolving rows. It never stops the
// fallback chain; it is reported alongside whatever data was found.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

var (
	errCacheMiss  = errors.New("cache miss")
	errNoSnapshot = errors.New("no snapshot")
)

// diagnose turns a strategy error into a Diagnostic. Plain misses are not
// reported.
func diagnose(err error) (Diagnostic, bool) {
	switch {
	case err == nil, errors.Is(err, errCacheMiss), errors.Is(err, errNoSnapshot):
		return Diagnostic{}, false
	case errors.Is(err, core.ErrConfigurationMissing):
		return Diagnostic{KindConfigurationMissing, "The spreadsheet link is not configured."}, true
	case errors.Is(err, core.ErrCredentialMissing):
		return Diagnostic{KindCredentialMissing, "Spreadsheet credentials are not configured."}, true
	case errors.Is(err, core.ErrCredentialInvalid):
		return Diagnostic{KindCredentialInvalid, "Spreadsheet credentials were rejected."}, true
	case errors.Is(err, core.ErrRemoteNotFound):
		return Diagnostic{KindRemoteNotFound, "The spreadsheet was not found. Check the configured link."}, true
	case errors.Is(err, core.ErrRemoteTransient):
		return Diagnostic{KindRemoteUnavailable, "The spreadsheet could not be reached."}, true
	default:
		return Diagnostic{KindSnapshotUnreadable, "The saved copy of the data could not be read."}, true
	}
}

// permanent errors come from configuration, not from the remote service, and
// must neither be retried nor trip the breaker.
func permanent(err error) bool {
	return errors.Is(err, core.ErrConfigurationMissing) ||
		errors.Is(err, core.ErrCredentialMissing) ||
		errors.Is(err, core.ErrCredentialInvalid) ||
		errors.Is(err, core.ErrRemoteNotFound)
}
