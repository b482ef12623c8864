package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	envconfig "github.com/pyera/ledger/internal/common/config"
	commonErrors "github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/recurring"
	dynamoClient "github.com/pyera/ledger/internal/platform/dynamodb/client"
	dynamodbRepository "github.com/pyera/ledger/internal/platform/dynamodb/repository"
)

// Runner drives one pass over all due recurring definitions. Each definition
// is processed independently; a failure on one never blocks the rest.
type Runner struct {
	recurringService *recurring.Service
	log              *zap.Logger
}

// NewRunner creates a new Runner
func NewRunner(recurringService *recurring.Service, log *zap.Logger) *Runner {
	return &Runner{
		recurringService: recurringService,
		log:              log,
	}
}

// Run materializes every definition due as of now. Conflicts mean another
// worker got there first and count as processed elsewhere, not failures.
func (r *Runner) Run(ctx context.Context) error {
	asOf := time.Now().UTC()

	due, err := r.recurringService.GetDue(ctx, asOf)
	if err != nil {
		r.log.Error("failed to query due definitions", zap.Error(err))
		return err
	}

	var processed, skipped, failed int
	for _, d := range due {
		if err := r.recurringService.ProcessDue(ctx, d); err != nil {
			if isConflict(err) {
				skipped++
				continue
			}
			failed++
			r.log.Error("failed to process definition",
				zap.String("definitionId", d.DefinitionID),
				zap.String("ownerId", d.OwnerID),
				zap.Error(err))
			continue
		}
		processed++
	}

	r.log.Info("recurrence pass complete",
		zap.String("asOf", asOf.Format("2006-01-02")),
		zap.Int("due", len(due)),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed))
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, commonErrors.NewConflictError(""))
}

func main() {
	// Local runs pick up .env; in Lambda the environment is already set.
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config, err := envconfig.LoadFromEnv()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	client, err := dynamoClient.NewDynamoDBClient(context.Background(), config.AWSRegion)
	if err != nil {
		log.Fatal("failed to initialize DynamoDB client", zap.Error(err))
	}

	factory := dynamodbRepository.NewFactory(client, config.DynamoDBTableName, logger)
	recurringService := recurring.NewService(factory.RecurringRepository(), factory.AccountRepository(), logger)

	runner := NewRunner(recurringService, log)

	if config.IsLambda() {
		lambda.Start(runner.Run)
		return
	}

	if err := runner.Run(context.Background()); err != nil {
		os.Exit(1)
	}
}
