package line

import (
	"context"
	"errors"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"line-flex-bridge/internal/integrations/paramstore"
)

// VerifySignature checks the x-line-signature header, the base64 HMAC-SHA256
// of body keyed by the channel secret.
func VerifySignature(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	return webhook.ValidateSignature(secret, header, body)
}

// SignatureVerifier checks x-line-signature using the channel secret stored in SSM.
type SignatureVerifier struct {
	getter    paramstore.Getter
	paramName string
}

func NewSignatureVerifier(ps paramstore.Getter, paramName string) (*SignatureVerifier, error) {
	if ps == nil {
		return nil, errors.New("line: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("line: credentials parameter name must not be empty")
	}
	return &SignatureVerifier{getter: ps, paramName: paramName}, nil
}

// Verify reports whether signature matches body. An error means the secret
// could not be loaded, not that the signature is wrong.
func (v *SignatureVerifier) Verify(ctx context.Context, body []byte, signature string) (bool, error) {
	creds, err := fetchCredentials(ctx, v.getter, v.paramName)
	if err != nil {
		return false, err
	}
	if creds.ChannelSecret == "" {
		return false, errors.New("line: channel secret is empty")
	}
	return VerifySignature(body, signature, creds.ChannelSecret), nil
}
