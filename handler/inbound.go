package handler

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"

	"line-flex-bridge/internal/usecase"
)

const lineSignatureHeader = "x-line-signature"

type InboundRouter interface {
	Handle(ctx context.Context, req usecase.InboundRequest) (int, error)
}

// Inbound adapts API Gateway requests for the LINE webhook.
type Inbound struct {
	router        InboundRouter
	publicBaseURL string
}

func NewInbound(router InboundRouter, publicBaseURL string) (*Inbound, error) {
	if router == nil {
		return nil, errors.New("handler: inbound router must not be nil")
	}
	return &Inbound{router: router, publicBaseURL: publicBaseURL}, nil
}

// Handle returns routing failures to the Lambda runtime rather than mapping
// them to a response.
func (h *Inbound) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req)
	body, err := rawBody(req)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	status, err := h.router.Handle(ctx, usecase.InboundRequest{
		Body:          body,
		Signature:     header(req, lineSignatureHeader),
		CallbackURL:   outboundURL(req, h.publicBaseURL),
		CorrelationID: corrID,
	})
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	return response(status, corrID), nil
}
