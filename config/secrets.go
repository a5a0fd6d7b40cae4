package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretSource is the part of the Secrets Manager client Load uses.
type SecretSource interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// signingSecretField is read when the secret payload is a JSON object.
const signingSecretField = "AUTHGATE_SIGNING_SECRET"

// NewAWSSecretSource builds a Secrets Manager client from the default
// credential chain.
func NewAWSSecretSource(ctx context.Context, region string) (*secretsmanager.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: load aws config: %w", err)
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// FetchSigningSecret reads secretID from src. The payload is either the raw
// secret or a JSON object holding it under AUTHGATE_SIGNING_SECRET.
func FetchSigningSecret(ctx context.Context, src SecretSource, secretID string) (string, error) {
	out, err := src.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return "", fmt.Errorf("config: fetch secret %s: %w", secretID, err)
	}

	var payload string
	switch {
	case out.SecretString != nil:
		payload = *out.SecretString
	case len(out.SecretBinary) > 0:
		payload = string(out.SecretBinary)
	default:
		return "", fmt.Errorf("config: secret %s has no payload", secretID)
	}

	if strings.HasPrefix(strings.TrimSpace(payload), "{") {
		var kv map[string]string
		if err := json.Unmarshal([]byte(payload), &kv); err != nil {
			return "", fmt.Errorf("config: secret %s is not valid JSON: %w", secretID, err)
		}
		v, ok := kv[signingSecretField]
		if !ok || v == "" {
			return "", fmt.Errorf("config: secret %s has no %s field", secretID, signingSecretField)
		}
		return v, nil
	}
	if payload == "" {
		return "", errors.New("config: empty signing secret")
	}
	return payload, nil
}
