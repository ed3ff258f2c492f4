package twilio

import (
	"context"
	"errors"
	"net/url"
	"strings"

	twclient "github.com/twilio/twilio-go/client"

	"line-flex-bridge/internal/integrations/paramstore"
)

// ValidateRequest reports whether signature is the X-Twilio-Signature of rawURL
// and params. The URL must match the one registered on the webhook, give or
// take an explicit default port.
func ValidateRequest(authToken, signature, rawURL string, params url.Values) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || authToken == "" {
		return false
	}
	validator := twclient.NewRequestValidator(authToken)
	return validator.Validate(rawURL, flatten(params), signature)
}

// flatten keeps the first value of each param; channel webhooks never repeat one.
func flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// RequestValidator checks X-Twilio-Signature using the auth token stored in SSM.
type RequestValidator struct {
	getter    paramstore.Getter
	paramName string
}

func NewRequestValidator(ps paramstore.Getter, paramName string) (*RequestValidator, error) {
	if ps == nil {
		return nil, errors.New("twilio: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("twilio: credentials parameter name must not be empty")
	}
	return &RequestValidator{getter: ps, paramName: paramName}, nil
}

// Verify reports whether signature matches. An error means the auth token
// could not be loaded, not that the signature is wrong.
func (v *RequestValidator) Verify(ctx context.Context, rawURL string, params url.Values, signature string) (bool, error) {
	creds, err := fetchCredentials(ctx, v.getter, v.paramName)
	if err != nil {
		return false, err
	}
	if creds.AuthToken == "" {
		return false, errors.New("twilio: auth token is empty")
	}
	return ValidateRequest(creds.AuthToken, signature, rawURL, params), nil
}
