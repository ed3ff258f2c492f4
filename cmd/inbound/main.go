package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"line-flex-bridge/handler"
	"line-flex-bridge/internal/app"
	"line-flex-bridge/internal/integrations/paramstore"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := app.LoadConfig(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		logger.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	params, err := paramstore.NewCache(ssmClient)
	if err != nil {
		logger.Error("failed to create parameter cache", "err", err)
		os.Exit(1)
	}
	app.WarmSecrets(ctx, cfg, params, logger)

	var claimAPI app.ClaimAPI
	if cfg.ClaimTable != "" {
		claimAPI = awsdynamodb.NewFromConfig(awsCfg)
	}

	// ---- Handler ----
	router, err := app.BuildInbound(cfg, params, claimAPI, logger)
	if err != nil {
		logger.Error("failed to create inbound router", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewInbound(router, cfg.PublicBaseURL)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
