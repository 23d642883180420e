package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/vrumi/vrumi-backend/pkg/config"
	"github.com/vrumi/vrumi-backend/pkg/gcp"
	"github.com/vrumi/vrumi-backend/pkg/logger"
)

const (
	metadataCheckTimeout = 10 * time.Second

	// maxRowsPerPut keeps each streaming request well under the API limits.
	maxRowsPerPut = 500
)

var (
	errProjectIDRequired    = gcp.ErrProjectIDRequired
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errTableNotConfigured   = errors.New("bigquery table is not configured")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client streams rows into the revenue analytics dataset. Only tables named in
// config are writable; they are provisioned outside the service.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  map[string]*bigquery.Table
}

func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID, err := gcp.ProjectID(gcpCfg)
	if err != nil {
		return nil, err
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	names := configuredTables(cfg)
	if len(names) == 0 {
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}

	dataset := bq.Dataset(datasetID)
	c := &Client{client: bq, dataset: dataset, tables: make(map[string]*bigquery.Table, len(names))}
	for _, name := range names {
		c.tables[name] = dataset.Table(name)
	}

	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  names,
		}), "bigquery client initialized")
	}
	return c, nil
}

// Ping checks the dataset and every configured table still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeMetadataErr("dataset", c.dataset.DatasetID, err)
	}
	for name, table := range c.tables {
		if _, err := table.Metadata(ctx); err != nil {
			return describeMetadataErr("table", name, err)
		}
	}
	return nil
}

// InsertRows streams rows into a configured table, splitting large slices
// into several requests. Rows already sent stay written when a later chunk
// fails, so callers should set insert ids for deduplication.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	name := strings.TrimSpace(table)
	if name == "" {
		return errTableNameRequired
	}
	target, ok := c.tables[name]
	if !ok {
		return fmt.Errorf("%w: %s", errTableNotConfigured, name)
	}

	inserter := target.Inserter()
	for start := 0; start < len(rows); start += maxRowsPerPut {
		end := min(start+maxRowsPerPut, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func configuredTables(cfg config.BigQueryConfig) []string {
	if trimmed := strings.TrimSpace(cfg.RevenueEventsTable); trimmed != "" {
		return []string{trimmed}
	}
	return nil
}

func describeMetadataErr(kind, name string, err error) error {
	if IsNotFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
