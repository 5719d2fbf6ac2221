// Package app wires the pipeline from configuration for the process entrypoints.
package app

import (
	"context"
	"fmt"

	"collateral-evidence/internal/adapter/oracle"
	repo "collateral-evidence/internal/adapter/repository/mysql"
	"collateral-evidence/internal/adapter/storage"
	"collateral-evidence/internal/config"
	"collateral-evidence/internal/infrastructure/awsutil"
	"collateral-evidence/internal/usecase/evidence"
	"collateral-evidence/internal/usecase/verification"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Pipeline struct {
	Evidence     *evidence.Pipeline
	Verification *verification.Service
}

// Resolver picks how the oracle reaches stored files.
func Resolver(ctx context.Context, cfg *config.Config) (verification.URIResolver, error) {
	switch cfg.StorageScheme {
	case "gs":
		return storage.GCSResolver{Bucket: cfg.StorageBucket}, nil
	case "s3":
		awsConf, err := awsutil.Load(ctx, cfg.AWSRegion, cfg.AWSEndpointURL)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		presigner := s3.NewPresignClient(awsutil.S3(awsConf, cfg.AWSEndpointURL))
		return storage.NewS3Resolver(presigner, cfg.StorageBucket, cfg.S3PresignTTL), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", cfg.StorageScheme)
	}
}

// Policy overlays the configured tunables on the default policy; zero values keep the default.
func Policy(cfg *config.Config) evidence.Policy {
	p := evidence.DefaultPolicy()
	if cfg.BundleSize > 0 {
		p.BundleSize = cfg.BundleSize
	}
	if cfg.MaxPhotoAge > 0 {
		p.MaxPhotoAge = cfg.MaxPhotoAge
	}
	if cfg.GeofenceMeters > 0 {
		p.GeofenceMeters = cfg.GeofenceMeters
	}
	if cfg.OracleTimeout > 0 {
		p.ClaimLease = verification.ClaimLease(cfg.OracleTimeout)
	}
	p.BillRequireGPS = cfg.BillRequireGPS
	return p
}

// Build assembles the evidence pipeline and the verification service over db.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logrus.Logger) (*Pipeline, error) {
	gem, err := oracle.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, cfg.OracleTimeout)
	if err != nil {
		return nil, err
	}
	uris, err := Resolver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return assemble(cfg, db, gem, uris, log), nil
}

func assemble(cfg *config.Config, db *gorm.DB, o verification.Oracle, uris verification.URIResolver, log *logrus.Logger) *Pipeline {
	tx := repo.NewGormUoW(db)
	inv := verification.NewInvoker(o, uris, cfg.OracleTimeout, log)
	rec := verification.NewReconciler(repo.NewLoanRepository(db), cfg.LowConfidenceThreshold, log)
	svc := verification.NewService(inv, rec, tx, cfg.BundleSize, log)
	return &Pipeline{
		Evidence:     evidence.NewPipeline(tx, Policy(cfg), svc, log),
		Verification: svc,
	}
}
