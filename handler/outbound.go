package handler

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"

	"line-flex-bridge/internal/usecase"
)

const twilioSignatureHeader = "X-Twilio-Signature"

type OutboundRouter interface {
	Handle(ctx context.Context, req usecase.OutboundRequest) (int, error)
}

// Outbound adapts API Gateway requests for the Flex channel webhook.
type Outbound struct {
	router        OutboundRouter
	publicBaseURL string
}

func NewOutbound(router OutboundRouter, publicBaseURL string) (*Outbound, error) {
	if router == nil {
		return nil, errors.New("handler: outbound router must not be nil")
	}
	return &Outbound{router: router, publicBaseURL: publicBaseURL}, nil
}

func (h *Outbound) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req)
	body, err := rawBody(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	status, err := h.router.Handle(ctx, usecase.OutboundRequest{
		Body:          string(body),
		Signature:     header(req, twilioSignatureHeader),
		URL:           outboundURL(req, h.publicBaseURL),
		CorrelationID: corrID,
	})
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response(status, corrID), nil
}
