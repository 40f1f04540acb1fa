package opensearch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/telepay/infra/logger"
	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

const (
	SystemLogIndex = "telepay-system-logs"
	CallLogIndex   = "telepay-telebirr-calls"
)

// Options configures the OpenSearch connection
type Options struct {
	URL                string
	Username           string
	Password           string
	Enabled            bool
	InsecureSkipVerify bool
}

// Client wraps the OpenSearch client
type Client struct {
	client  *opensearch.Client
	enabled bool
}

// NewClient creates a new OpenSearch client and makes sure the indices exist
func NewClient(opts Options) (*Client, error) {
	cfg := opensearch.Config{
		Addresses: []string{opts.URL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if opts.Username != "" && opts.Password != "" {
		cfg.Username = opts.Username
		cfg.Password = opts.Password
	}

	client, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	osClient := &Client{client: client, enabled: opts.Enabled}

	if opts.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := osClient.setupIndices(ctx); err != nil {
			logger.Warn("Failed to setup OpenSearch indices", logger.LogContext{
				Fields: map[string]any{"error": err.Error()},
			})
		}
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled returns whether OpenSearch logging is enabled
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

func (c *Client) setupIndices(ctx context.Context) error {
	for index, mapping := range map[string]string{
		SystemLogIndex: systemLogMapping,
		CallLogIndex:   callLogMapping,
	} {
		exists, err := c.indexExists(ctx, index)
		if err != nil {
			return fmt.Errorf("check index %s: %w", index, err)
		}
		if exists {
			continue
		}
		if err := c.createIndex(ctx, index, mapping); err != nil {
			return fmt.Errorf("create index %s: %w", index, err)
		}
		logger.Info("Created OpenSearch index", logger.LogContext{Fields: map[string]any{"index": index}})
	}
	return nil
}

func (c *Client) indexExists(ctx context.Context, index string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{Index: []string{index}}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

func (c *Client) createIndex(ctx context.Context, index, mapping string) error {
	req := opensearchapi.IndicesCreateRequest{
		Index: index,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index creation error: %s", res.String())
	}
	return nil
}

const systemLogMapping = `{
	"mappings": {
		"properties": {
			"timestamp":   {"type": "date"},
			"level":       {"type": "keyword"},
			"message":     {"type": "text"},
			"component":   {"type": "keyword"},
			"provider":    {"type": "keyword"},
			"request_id":  {"type": "keyword"},
			"error":       {"type": "text"},
			"environment": {"type": "keyword"},
			"service":     {"type": "keyword"}
		}
	},
	"settings": {"number_of_shards": 1, "number_of_replicas": 0}
}`

const callLogMapping = `{
	"mappings": {
		"properties": {
			"timestamp":          {"type": "date"},
			"request_id":         {"type": "keyword"},
			"method":             {"type": "keyword"},
			"endpoint":           {"type": "keyword"},
			"client_ip":          {"type": "keyword"},
			"status_code":        {"type": "integer"},
			"processing_time_ms": {"type": "integer"},
			"merch_order_id":     {"type": "keyword"},
			"request_body":       {"type": "text"},
			"response_body":      {"type": "text"}
		}
	},
	"settings": {"number_of_shards": 1, "number_of_replicas": 0}
}`
