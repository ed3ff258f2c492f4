package line

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// sign produces the header LINE would send for body.
func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_KnownVector(t *testing.T) {
	body := []byte(`{"events":[]}`)
	require.True(t, VerifySignature(body, "ZuVY0DkZxvoGXoj+QPBt7+gZL2ow1Kpy+nm913XvpIw=", "s3cret"))
	require.Equal(t, "ZuVY0DkZxvoGXoj+QPBt7+gZL2ow1Kpy+nm913XvpIw=", sign(body, "s3cret"))
	require.False(t, VerifySignature(body, "not base64!", "s3cret"))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"events":[{"type":"message"}]}`)
	good := sign(body, "s3cret")

	require.True(t, VerifySignature(body, good, "s3cret"))
	require.True(t, VerifySignature(body, " "+good+" ", "s3cret"))
	require.False(t, VerifySignature(body, good, "wrong"))
	require.False(t, VerifySignature([]byte(`{"events":[]}`), good, "s3cret"))
	require.False(t, VerifySignature(body, "", "s3cret"))
	require.False(t, VerifySignature(body, good, ""))
}

func TestSignatureVerifier_Verify(t *testing.T) {
	v, err := NewSignatureVerifier(validCreds(), credsParam)
	require.NoError(t, err)

	body := []byte(`{"events":[]}`)
	ok, err := v.Verify(context.Background(), body, sign(body, "s3cret"))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = v.Verify(context.Background(), body, "bogus")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignatureVerifier_SecretErrors(t *testing.T) {
	v, err := NewSignatureVerifier(&fakeGetter{err: errors.New("ssm down")}, credsParam)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), []byte(`{}`), "x")
	require.ErrorContains(t, err, "ssm down")

	v, err = NewSignatureVerifier(&fakeGetter{val: `{"channel_access_token":"t"}`}, credsParam)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), []byte(`{}`), "x")
	require.ErrorContains(t, err, "channel secret is empty")
}

func TestNewSignatureVerifier_Validates(t *testing.T) {
	_, err := NewSignatureVerifier(nil, credsParam)
	require.Error(t, err)
	_, err = NewSignatureVerifier(validCreds(), "")
	require.Error(t, err)
}
