package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"line-flex-bridge/handler"
	"line-flex-bridge/internal/app"
	"line-flex-bridge/internal/integrations/paramstore"
)

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

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

	router, err := app.BuildOutbound(cfg, params, logger)
	if err != nil {
		logger.Error("failed to create outbound router", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewOutbound(router, cfg.PublicBaseURL)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
