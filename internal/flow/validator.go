package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"water-vending-backend/internal/qr"
)

// DefaultLocation is used when the server confirms a machine but omits its
// human-readable location.
const DefaultLocation = "unknown"

// ValidationCode classifies why a machine reference was rejected.
type ValidationCode string

const (
	CodeMissingParameters  ValidationCode = "MISSING_PARAMETERS"
	CodeInvalidOrExpired   ValidationCode = "INVALID_OR_EXPIRED"
	CodeNotFoundOrInactive ValidationCode = "NOT_FOUND_OR_INACTIVE"
	CodeNetworkError       ValidationCode = "NETWORK_ERROR"
)

// ValidationError is the typed failure result of Validate. Expected
// rejections are values of this type, never raw transport errors.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// VerifiedMachine is a machine reference confirmed authentic and
// dispensing-eligible by the backend.
type VerifiedMachine struct {
	MachineID       string
	DisplayLocation string
}

// Validator checks machine references against the verification endpoint.
type Validator struct {
	httpClient *http.Client
	baseURL    string
}

// NewValidator creates a validator for the given API base URL.
func NewValidator(baseURL string, httpClient *http.Client) *Validator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Validator{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type resolveBody struct {
	OK              bool   `json:"ok"`
	MachineID       string `json:"machineId"`
	MachineLocation string `json:"machineLocation"`
	Error           string `json:"error"`
}

// Validate confirms the reference with the server. It returns a
// *ValidationError for every expected rejection; transport problems are
// converted to CodeNetworkError rather than surfaced raw.
func (v *Validator) Validate(ctx context.Context, ref qr.Reference) (*VerifiedMachine, error) {
	if !ref.Valid() {
		return nil, &ValidationError{Code: CodeMissingParameters, Message: "no machine identifier in payload"}
	}

	params := url.Values{}
	params.Set("m", ref.MachineID)
	if ref.Signature != "" {
		params.Set("sig", ref.Signature)
	}
	if ref.Timestamp != "" {
		params.Set("ts", ref.Timestamp)
	}

	endpoint := v.baseURL + "/api/qr/resolve?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &ValidationError{Code: CodeNetworkError, Message: err.Error()}
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, &ValidationError{Code: CodeNetworkError, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ValidationError{Code: CodeNetworkError, Message: err.Error()}
	}

	var body resolveBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, &ValidationError{Code: CodeNetworkError, Message: fmt.Sprintf("malformed response: %v", err)}
	}

	if !body.OK {
		switch body.Error {
		case "MISSING_PARAMETERS":
			return nil, &ValidationError{Code: CodeMissingParameters, Message: body.Error}
		case "NOT_FOUND_OR_INACTIVE":
			return nil, &ValidationError{Code: CodeNotFoundOrInactive, Message: body.Error}
		default:
			// Signature rejections and anything the server does not
			// classify further.
			return nil, &ValidationError{Code: CodeInvalidOrExpired, Message: body.Error}
		}
	}

	machineID := body.MachineID
	if machineID == "" {
		machineID = ref.MachineID
	}
	location := body.MachineLocation
	if location == "" {
		location = DefaultLocation
	}

	return &VerifiedMachine{MachineID: machineID, DisplayLocation: location}, nil
}
