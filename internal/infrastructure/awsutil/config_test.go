package awsutil

import (
	"context"
	"testing"
)

func TestLoad_CustomEndpoint(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := Load(context.Background(), "ap-southeast-1", "http://localstack:4566")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Region != "ap-southeast-1" {
		t.Fatalf("region = %q", cfg.Region)
	}
	if cfg.EndpointResolverWithOptions == nil {
		t.Fatal("custom endpoint resolver not installed")
	}
	if c := S3(cfg, "http://localstack:4566"); !c.Options().UsePathStyle {
		t.Fatal("path style not forced behind a custom endpoint")
	}
}

func TestLoad_DefaultEndpoint(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := Load(context.Background(), "us-east-1", " ")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EndpointResolverWithOptions != nil {
		t.Fatal("resolver installed without an endpoint")
	}
	if S3(cfg, "").Options().UsePathStyle {
		t.Fatal("path style forced without a custom endpoint")
	}
}
