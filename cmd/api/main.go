package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/jun/cloudmover/internal/app"
)

func main() {
	application, err := app.NewApp(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	lambda.Start(application.HandleRequest)
}
