package handler

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
)

const (
	correlationHeader = "X-Correlation-Id"
	outboundPath      = "/outbound"
)

var newCorrelationID = func() string {
	return uuid.NewString()
}

// header returns the first value of name, matching case-insensitively since
// API Gateway passes header names through as the client sent them.
func header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, v := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

func correlationID(req events.APIGatewayProxyRequest) string {
	if id := strings.TrimSpace(header(req, correlationHeader)); id != "" {
		return id
	}
	return newCorrelationID()
}

func rawBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, fmt.Errorf("handler: decode base64 body: %w", err)
	}
	return b, nil
}

// outboundURL is the public URL of the outbound function. Twilio signs
// requests with the exact URL the webhook was registered with, so both
// functions must derive it the same way.
func outboundURL(req events.APIGatewayProxyRequest, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + outboundPath
	}
	host := req.RequestContext.DomainName
	if host == "" {
		host = header(req, "Host")
	}
	return fmt.Sprintf("https://%s/%s%s", host, req.RequestContext.Stage, outboundPath)
}

func response(status int, corrID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":    "text/plain",
			correlationHeader: corrID,
		},
		Body: http.StatusText(status),
	}
}
