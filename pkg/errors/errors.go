package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents fetch failures (timeouts, refused connections, bad status)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents price text that could not be parsed
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents a host that asked us to back off
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypePassFatal represents errors that abort a whole scan pass
	ErrorTypePassFatal ErrorType = "pass_fatal"
	// ErrorTypeLedger represents seen-ledger persistence errors
	ErrorTypeLedger ErrorType = "ledger"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// Reason narrows an ErrorType down to a specific failure
type Reason string

const (
	ReasonNoNumericContent Reason = "no_numeric_content"
	ReasonNegative         Reason = "negative_amount"
	ReasonMalformed        Reason = "malformed_number"

	ReasonTimeout           Reason = "timeout"
	ReasonConnectionRefused Reason = "connection_refused"
	ReasonHTTPStatus        Reason = "http_status"
	ReasonBlocked           Reason = "blocked"

	ReasonMalformedSeed          Reason = "malformed_seed"
	ReasonNoSeedReachable        Reason = "no_seed_reachable"
	ReasonNoCategoriesDiscovered Reason = "no_categories_discovered"
)

// Sentinels for errors.Is checks. Matching compares Type and Reason only.
var (
	ErrNoNumericContent       = &ScanError{Type: ErrorTypeParsing, Reason: ReasonNoNumericContent}
	ErrNegative               = &ScanError{Type: ErrorTypeParsing, Reason: ReasonNegative}
	ErrMalformed              = &ScanError{Type: ErrorTypeParsing, Reason: ReasonMalformed}
	ErrTimeout                = &ScanError{Type: ErrorTypeNetwork, Reason: ReasonTimeout}
	ErrConnectionRefused      = &ScanError{Type: ErrorTypeNetwork, Reason: ReasonConnectionRefused}
	ErrHTTPStatus             = &ScanError{Type: ErrorTypeNetwork, Reason: ReasonHTTPStatus}
	ErrBlocked                = &ScanError{Type: ErrorTypeRateLimit, Reason: ReasonBlocked}
	ErrMalformedSeed          = &ScanError{Type: ErrorTypePassFatal, Reason: ReasonMalformedSeed}
	ErrNoSeedReachable        = &ScanError{Type: ErrorTypePassFatal, Reason: ReasonNoSeedReachable}
	ErrNoCategoriesDiscovered = &ScanError{Type: ErrorTypePassFatal, Reason: ReasonNoCategoriesDiscovered}
)

// ScanError represents an error raised while scanning a site
type ScanError struct {
	Type       ErrorType
	Reason     Reason
	URL        string
	StatusCode int
	Message    string
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *ScanError) Error() string {
	head := fmt.Sprintf("[%s]", e.Type)
	if e.Reason != "" {
		head = fmt.Sprintf("[%s/%s]", e.Type, e.Reason)
	}
	if e.URL != "" {
		head += " " + e.URL
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", head, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", head, e.Message)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ScanError of the same type and reason.
// An empty Reason on the target matches any reason of that type.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	if !ok {
		return false
	}
	if t.Type != e.Type {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// IsRetryable returns true if the error is worth one more attempt
func (e *ScanError) IsRetryable() bool {
	if e.Type != ErrorTypeNetwork {
		return false
	}
	switch e.Reason {
	case ReasonTimeout, ReasonConnectionRefused:
		return true
	case ReasonHTTPStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// IsFatal returns true if the error aborts the current pass
func (e *ScanError) IsFatal() bool {
	return e.Type == ErrorTypePassFatal
}

// New creates a new ScanError
func New(errType ErrorType, reason Reason, url, message string, err error) *ScanError {
	return &ScanError{
		Type:    errType,
		Reason:  reason,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewParsing creates a new price parsing error
func NewParsing(reason Reason, raw string) *ScanError {
	return New(ErrorTypeParsing, reason, "", fmt.Sprintf("cannot parse price %q", raw), nil)
}

// NewTimeout creates a new fetch timeout error
func NewTimeout(url string, err error) *ScanError {
	return New(ErrorTypeNetwork, ReasonTimeout, url, "request timed out", err)
}

// NewConnection creates a new connection failure error
func NewConnection(url string, err error) *ScanError {
	return New(ErrorTypeNetwork, ReasonConnectionRefused, url, "connection failed", err)
}

// NewHTTPStatus creates a new unexpected status error
func NewHTTPStatus(url string, status int) *ScanError {
	e := New(ErrorTypeNetwork, ReasonHTTPStatus, url, fmt.Sprintf("unexpected status code: %d", status), nil)
	e.StatusCode = status
	return e
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(url string, duration time.Duration) *ScanError {
	return New(ErrorTypeRateLimit, ReasonBlocked, url, fmt.Sprintf("rate limited for %v", duration), nil)
}

// NewPassFatal creates a new error that aborts the pass
func NewPassFatal(reason Reason, url, message string, err error) *ScanError {
	return New(ErrorTypePassFatal, reason, url, message, err)
}

// NewLedger creates a new ledger persistence error
func NewLedger(message string, err error) *ScanError {
	return New(ErrorTypeLedger, "", "", message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(message string, err error) *ScanError {
	return New(ErrorTypePublisher, "", "", message, err)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ScanError {
	return New(ErrorTypeConfiguration, "", "", message, err)
}
