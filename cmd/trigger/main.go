// Command trigger is the Lambda function that starts the scraper task.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/sirupsen/logrus"

	"etfkpis/internal/config"
	"etfkpis/internal/logger"
	"etfkpis/internal/trigger"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadTrigger()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: "json", Output: "stdout"})
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	t := trigger.New(ecs.NewFromConfig(awsCfg), *cfg, logger.WithComponent(log, "trigger"))
	lambda.Start(t.Handle)
}
