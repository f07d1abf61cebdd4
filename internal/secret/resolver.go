// Package secret resolves named secrets such as the Google client secret.
// Production reads SSM Parameter Store; dev mode reads the environment.
package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/spf13/viper"
)

// ErrNotFound means no source has a value for the name.
var ErrNotFound = errors.New("secret not found")

// Default parameter names.
const (
	GoogleClientSecretParam = "/cloudmover/google-client-secret"
	APIGatewaySecretParam   = "/cloudmover/api-gateway-secret"
)

// SSMClient is the subset of *ssm.Client used by SSMResolver.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Resolver looks up a secret by parameter name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// SSMResolver reads SecureString parameters and keeps them for the life of
// the process, so a warm Lambda container asks SSM once per name.
type SSMResolver struct {
	client SSMClient

	mu    sync.Mutex
	cache map[string]string
}

func NewSSMResolver(client SSMClient) *SSMResolver {
	return &SSMResolver{client: client, cache: make(map[string]string)}
}

func (r *SSMResolver) Resolve(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	v, ok := r.cache[name]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	out, err := r.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var missing *ssmtypes.ParameterNotFound
		if errors.As(err, &missing) {
			return "", fmt.Errorf("%w: ssm parameter %q", ErrNotFound, name)
		}
		return "", fmt.Errorf("ssm get parameter %q: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("%w: ssm parameter %q has no value", ErrNotFound, name)
	}

	r.mu.Lock()
	r.cache[name] = *out.Parameter.Value
	r.mu.Unlock()
	return *out.Parameter.Value, nil
}

// EnvResolver maps a parameter name to an environment key and reads it
// through viper, so it sees the same environment as the config loader.
type EnvResolver struct {
	v *viper.Viper
}

// NewEnvResolver creates an EnvResolver. A nil v uses a fresh viper bound to the environment.
func NewEnvResolver(v *viper.Viper) *EnvResolver {
	if v == nil {
		v = viper.New()
		v.AutomaticEnv()
	}
	return &EnvResolver{v: v}
}

func (r *EnvResolver) Resolve(_ context.Context, name string) (string, error) {
	key := EnvKey(name)
	val := r.v.GetString(key)
	if val == "" {
		return "", fmt.Errorf("%w: environment variable %q (from %q)", ErrNotFound, key, name)
	}
	return val, nil
}

// EnvKey converts a parameter path to its environment variable name:
// "/cloudmover/google-client-secret" becomes "GOOGLE_CLIENT_SECRET".
func EnvKey(name string) string {
	last := name[strings.LastIndex(name, "/")+1:]
	return strings.ToUpper(strings.ReplaceAll(last, "-", "_"))
}

// Chain tries each resolver in order and returns the first value found.
// Errors other than ErrNotFound stop the search.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, name string) (string, error) {
	for _, r := range c {
		v, err := r.Resolve(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}
