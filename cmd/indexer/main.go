// Command indexer runs the evidence pipeline as an AWS Lambda on S3 object-created events.
package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"

	repo "collateral-evidence/internal/adapter/repository/mysql"
	"collateral-evidence/internal/adapter/storage"
	"collateral-evidence/internal/app"
	"collateral-evidence/internal/config"
	"collateral-evidence/internal/infrastructure/awsutil"
	"collateral-evidence/internal/infrastructure/db"
	"collateral-evidence/internal/infrastructure/logging"
	"collateral-evidence/internal/usecase/evidence"
)

type processor interface {
	Process(ctx context.Context, ev evidence.StorageEvent) (evidence.Outcome, error)
}

type handler struct {
	heads storage.HeadObjecter
	p     processor
	log   *logrus.Logger
}

// handle processes every record; a store failure fails the batch so Lambda redelivers it.
func (h *handler) handle(ctx context.Context, e events.S3Event) error {
	var failed int
	for _, r := range e.Records {
		ev, err := storage.EventFromS3(ctx, h.heads, r.S3.Bucket.Name, r.S3.Object.Key)
		if err != nil {
			h.log.WithFields(logrus.Fields{"key": r.S3.Object.Key, "error": err}).Error("object metadata unavailable")
			failed++
			continue
		}
		outcome, err := h.p.Process(ctx, ev)
		if err != nil {
			h.log.WithFields(logrus.Fields{"path": ev.Name, "error": err}).Error("pipeline run failed")
			failed++
			continue
		}
		h.log.WithFields(logrus.Fields{"path": ev.Name, "outcome": outcome}).Info("processed")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, len(e.Records))
	}
	return nil
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	ctx := context.Background()

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	if err := repo.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	awsConf, err := awsutil.Load(ctx, cfg.AWSRegion, cfg.AWSEndpointURL)
	if err != nil {
		log.WithError(err).Fatal("aws config")
	}
	p, err := app.Build(ctx, cfg, gdb, log)
	if err != nil {
		log.WithError(err).Fatal("build pipeline")
	}

	h := &handler{heads: awsutil.S3(awsConf, cfg.AWSEndpointURL), p: p.Evidence, log: log}
	lambda.Start(h.handle)
}
