package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"line-flex-bridge/internal/integrations/line"
	"line-flex-bridge/internal/integrations/paramstore"
	"line-flex-bridge/internal/integrations/twilio"
	"line-flex-bridge/internal/repository"
	"line-flex-bridge/internal/usecase"
)

// ClaimAPI is the DynamoDB surface the provisioning claim store uses.
type ClaimAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// NewLogger returns the JSON logger both functions write to CloudWatch with.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// WarmSecrets prefetches the secrets the functions need so the first request
// does not pay for the SSM round trips. Failures are retried lazily.
func WarmSecrets(ctx context.Context, cfg Config, params *paramstore.Cache, logger *slog.Logger) {
	if err := params.Prefetch(ctx, cfg.LineChannelParam(), cfg.TwilioCredentialsParam()); err != nil {
		logger.Warn("secret prefetch failed, will retry on first request", "err", err)
	}
}

// BuildInbound wires the router for the LINE webhook function. claimAPI is only
// used when cfg.ClaimTable is set.
func BuildInbound(cfg Config, params paramstore.Getter, claimAPI ClaimAPI, logger *slog.Logger) (*usecase.InboundRouter, error) {
	if cfg.FlexFlowSID == "" {
		return nil, errors.New("app: TWILIO_FLEX_FLOW_SID is required")
	}
	lineClient, err := line.NewClient(params, cfg.LineChannelParam())
	if err != nil {
		return nil, fmt.Errorf("app: line client: %w", err)
	}
	verifier, err := line.NewSignatureVerifier(params, cfg.LineChannelParam())
	if err != nil {
		return nil, fmt.Errorf("app: line verifier: %w", err)
	}
	flex, err := twilio.NewClient(params, cfg.TwilioCredentialsParam(), cfg.FlexFlowSID, cfg.ChatServiceSID)
	if err != nil {
		return nil, fmt.Errorf("app: twilio client: %w", err)
	}

	var opts []usecase.ResolverOption
	if cfg.ClaimTable != "" {
		if claimAPI == nil {
			return nil, errors.New("app: CLAIM_TABLE is set but no DynamoDB client was provided")
		}
		claims, err := repository.New(claimAPI, cfg.ClaimTable)
		if err != nil {
			return nil, fmt.Errorf("app: claim store: %w", err)
		}
		opts = append(opts, usecase.WithClaims(claims, cfg.ClaimTTL))
	}
	resolver, err := usecase.NewSessionResolver(flex, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: session resolver: %w", err)
	}
	router, err := usecase.NewInboundRouter(verifier, lineClient, resolver, flex, cfg.AckText, logger)
	if err != nil {
		return nil, fmt.Errorf("app: inbound router: %w", err)
	}
	return router, nil
}

// BuildOutbound wires the router for the Flex channel webhook function.
func BuildOutbound(cfg Config, params paramstore.Getter, logger *slog.Logger) (*usecase.OutboundRouter, error) {
	lineClient, err := line.NewClient(params, cfg.LineChannelParam())
	if err != nil {
		return nil, fmt.Errorf("app: line client: %w", err)
	}
	flex, err := twilio.NewClient(params, cfg.TwilioCredentialsParam(), cfg.FlexFlowSID, cfg.ChatServiceSID)
	if err != nil {
		return nil, fmt.Errorf("app: twilio client: %w", err)
	}
	validator, err := twilio.NewRequestValidator(params, cfg.TwilioCredentialsParam())
	if err != nil {
		return nil, fmt.Errorf("app: twilio validator: %w", err)
	}
	router, err := usecase.NewOutboundRouter(validator, flex, lineClient, logger)
	if err != nil {
		return nil, fmt.Errorf("app: outbound router: %w", err)
	}
	return router, nil
}
