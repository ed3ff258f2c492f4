package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSM rejects GetParameters calls naming more than ten parameters.
const maxBatch = 10

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParameters(ctx context.Context, in *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// Getter is the interface that wraps GetParameter.
// Integrations depend on this interface rather than the concrete *Client so
// they remain testable without real AWS calls.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// BatchGetter is implemented by getters that can resolve several names in one call.
type BatchGetter interface {
	GetParameters(ctx context.Context, names ...string) (map[string]string, error)
}

// Client wraps an AWS SSM API for decrypted parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", name)
	}
	return *out.Parameter.Value, nil
}

// GetParameters resolves names in batches. Any name SSM reports as invalid fails the call.
func (c *Client) GetParameters(ctx context.Context, names ...string) (map[string]string, error) {
	if c.api == nil {
		return nil, errors.New("paramstore: client not initialized")
	}
	values := make(map[string]string, len(names))
	for start := 0; start < len(names); start += maxBatch {
		end := min(start+maxBatch, len(names))
		out, err := c.api.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          names[start:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("paramstore: get parameters: %w", err)
		}
		if out == nil {
			return nil, errors.New("paramstore: get parameters: empty response")
		}
		if len(out.InvalidParameters) > 0 {
			return nil, fmt.Errorf("paramstore: invalid parameters: %s", strings.Join(out.InvalidParameters, ", "))
		}
		for _, p := range out.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			values[*p.Name] = *p.Value
		}
	}
	return values, nil
}

// Cache memoizes successful reads for the process lifetime. Failed reads are
// not cached, so the next invocation retries them.
type Cache struct {
	getter Getter

	mu     sync.RWMutex
	values map[string]string
}

func NewCache(g Getter) (*Cache, error) {
	if g == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	return &Cache{getter: g, values: map[string]string{}}, nil
}

func (c *Cache) GetParameter(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	v, ok := c.values[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := c.getter.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.values[name] = v
	c.mu.Unlock()
	return v, nil
}

// Prefetch warms the cache, in one round trip when the getter supports batching.
func (c *Cache) Prefetch(ctx context.Context, names ...string) error {
	if bg, ok := c.getter.(BatchGetter); ok {
		values, err := bg.GetParameters(ctx, names...)
		if err != nil {
			return err
		}
		c.mu.Lock()
		for k, v := range values {
			c.values[k] = v
		}
		c.mu.Unlock()
		return nil
	}
	for _, name := range names {
		if _, err := c.GetParameter(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// GetJSON fetches name and decodes its value into out.
func GetJSON(ctx context.Context, g Getter, name string, out any) error {
	if g == nil {
		return errors.New("paramstore: getter is nil")
	}
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("paramstore: unmarshal %q as JSON: %w", name, err)
	}
	return nil
}
