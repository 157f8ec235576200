package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-lens/models"
	"market-lens/services"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// ValidationResult reports whether a credential reached its provider
type ValidationResult struct {
	Service  ServiceName   `json:"service"`
	Valid    bool          `json:"valid"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration_ms"`
}

// Validator probes providers with a cheap authenticated call
type Validator struct {
	timeout time.Duration
}

func NewValidator() *Validator {
	return &Validator{timeout: 10 * time.Second}
}

// Validate checks cred against its provider. Provider failures are reported
// in the result; the error is reserved for malformed input.
func (v *Validator) Validate(ctx context.Context, cred *Credential) (*ValidationResult, error) {
	if cred == nil {
		return nil, errors.New("credential cannot be nil")
	}
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	result := &ValidationResult{Service: cred.Service}

	var err error
	switch cred.Service {
	case ServiceAlphaVantage:
		err = v.validateAlphaVantage(ctx, cred)
	case ServiceAlpaca:
		err = v.validateAlpaca(ctx, cred)
	case ServiceBedrock:
		err = v.validateBedrock(ctx, cred)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownService, cred.Service)
	}
	result.Duration = time.Since(start)

	if err != nil {
		result.Message = err.Error()
		return result, nil
	}
	result.Valid = true
	result.Message = "Connection successful"
	return result, nil
}

func (v *Validator) validateAlphaVantage(ctx context.Context, cred *Credential) error {
	if cred.APIKey == "" {
		return errors.New("API key is required")
	}
	_, err := services.NewAlphaVantageService(cred.APIKey, cred.BaseURL).Quote(ctx, "IBM", models.AssetClassStock)
	if errors.Is(err, services.ErrRateLimited) {
		// throttled responses still mean the key was accepted
		return nil
	}
	return err
}

func (v *Validator) validateAlpaca(ctx context.Context, cred *Credential) error {
	if cred.APIKey == "" {
		return errors.New("API key is required")
	}
	if cred.APISecret == "" {
		return errors.New("API secret is required")
	}
	if _, err := services.NewAlpacaService(cred.APIKey, cred.APISecret, cred.BaseURL).MarketOpen(ctx); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	return nil
}

func (v *Validator) validateBedrock(ctx context.Context, cred *Credential) error {
	if cred.Region == "" {
		return errors.New("region is required")
	}
	if cred.ModelID == "" {
		return errors.New("model ID is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cred.Region))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return fmt.Errorf("no AWS credentials available: %w", err)
	}
	return nil
}
