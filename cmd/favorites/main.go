package main

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bbernstein/gotgas/backend-go/internal/app"
	"github.com/bbernstein/gotgas/backend-go/internal/config"
	"github.com/bbernstein/gotgas/backend-go/internal/handler"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/rs/zerolog/log"
)

var (
	lambdaStart     = lambda.Start // Allow mocking of lambda.Start in tests
	favoritesHandler *handler.FavoritesHandler
	setupOnce       sync.Once
)

func init() {
	setupOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		cfg.InitializeLogging()

		favoritesHandler, err = app.NewFavoritesHandler(context.Background(), cfg, metrics.NewMetrics())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize favorites handler")
		}
	})
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return favoritesHandler.HandleRequest(ctx, request)
}

func main() {
	lambdaStart(handleRequest)
}
