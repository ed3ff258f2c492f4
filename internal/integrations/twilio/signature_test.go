package twilio

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// sign produces the X-Twilio-Signature Twilio would send for rawURL and params.
func sign(authToken, rawURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	payload := rawURL
	for _, k := range keys {
		payload += k + params.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	_, _ = mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Example from Twilio's webhook security documentation.
func TestValidateRequest_DocumentedExample(t *testing.T) {
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	u := "https://mycompany.com/myapp.php?foo=1&bar=2"
	require.Equal(t, "0/KCTR6DLpKmkAf8muzZqo1nDgQ=", sign("12345", u, params))
	require.True(t, ValidateRequest("12345", "0/KCTR6DLpKmkAf8muzZqo1nDgQ=", u, params))
}

func TestValidateRequest(t *testing.T) {
	params := url.Values{"ChannelSid": {"CH1"}, "Body": {"hi"}, "Source": {"SDK"}}
	u := "https://abc.execute-api.test/prod/outbound"
	sig := sign("tok", u, params)

	require.True(t, ValidateRequest("tok", sig, u, params))
	require.False(t, ValidateRequest("tok", sig, "https://abc.execute-api.test/dev/outbound", params))
	require.False(t, ValidateRequest("other", sig, u, params))
	require.False(t, ValidateRequest("tok", "", u, params))

	tampered := url.Values{"ChannelSid": {"CH1"}, "Body": {"bye"}, "Source": {"SDK"}}
	require.False(t, ValidateRequest("tok", sig, u, tampered))
}

func TestValidateRequest_DefaultPortVariants(t *testing.T) {
	params := url.Values{"ChannelSid": {"CH1"}, "Body": {"hi"}}
	bare := "https://abc.execute-api.test/prod/outbound"
	withPort := "https://abc.execute-api.test:443/prod/outbound"

	require.True(t, ValidateRequest("tok", sign("tok", bare, params), withPort, params))
	require.True(t, ValidateRequest("tok", sign("tok", withPort, params), bare, params))
}

func TestRequestValidator_Verify(t *testing.T) {
	v, err := NewRequestValidator(validCreds(), credsParam)
	require.NoError(t, err)

	params := url.Values{"Body": {"hi"}}
	ok, err := v.Verify(context.Background(), "https://x/prod/outbound", params, sign("tok", "https://x/prod/outbound", params))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.Verify(context.Background(), "https://x/prod/outbound", params, "bogus")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRequestValidator_CredentialErrors(t *testing.T) {
	v, err := NewRequestValidator(&fakeGetter{err: errors.New("ssm down")}, credsParam)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "https://x", nil, "sig")
	require.ErrorContains(t, err, "ssm down")

	v, err = NewRequestValidator(&fakeGetter{val: `{"account_sid":"AC1"}`}, credsParam)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "https://x", nil, "sig")
	require.ErrorContains(t, err, "auth token is empty")

	_, err = NewRequestValidator(nil, credsParam)
	require.Error(t, err)
}
