package onepass

import (
	"context"
	"os"
	"strings"

	"github.com/1password/onepassword-sdk-go"

	"github.com/brizzbuzz/buildsecrets/internal/errors"
)

// ReferencePrefix marks a value as a 1Password secret reference.
const ReferencePrefix = "op://"

// TokenEnv is the environment variable holding a service account token.
const TokenEnv = "OP_SERVICE_ACCOUNT_TOKEN"

// IsReference reports whether value is a 1Password secret reference.
func IsReference(value string) bool {
	return strings.HasPrefix(value, ReferencePrefix)
}

type Client struct {
	op *onepassword.Client
}

func NewClient(ctx context.Context, tokenFile string) (*Client, error) {
	token, err := GetToken(tokenFile)
	if err != nil {
		return nil, err
	}

	client, err := onepassword.NewClient(ctx,
		onepassword.WithServiceAccountToken(token),
		onepassword.WithIntegrationInfo("buildsecrets manifest placeholders", "v1.0.0"),
	)
	if err != nil {
		return nil, errors.OnePasswordError("Creating 1Password client", "authentication failed", err)
	}

	return &Client{op: client}, nil
}

func (c *Client) ResolveSecret(ctx context.Context, reference string) (string, error) {
	return c.op.Secrets.Resolve(ctx, reference)
}

// GetToken returns the service account token from the environment or,
// failing that, from tokenFile.
func GetToken(tokenFile string) (string, error) {
	if token := os.Getenv(TokenEnv); token != "" {
		return strings.TrimSpace(token), nil
	}

	if tokenFile != "" {
		data, err := os.ReadFile(tokenFile)
		if err != nil {
			return "", errors.TokenError("Failed to read token file", tokenFile, err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", errors.TokenError("Token file is empty", tokenFile, nil)
		}
		return token, nil
	}

	return "", errors.TokenError("No token provided: set "+TokenEnv+" or provide a token file", "", nil)
}
