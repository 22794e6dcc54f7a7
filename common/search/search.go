package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

// Document is one ranked search hit.
type Document struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Client returns ranked documents for a query string.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Document, error)
}

type Config struct {
	URL        string
	APIKey     string
	Collection string        // document collection to query
	Timeout    time.Duration // per-call deadline, 0 = no extra deadline
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("typesense URL is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("typesense API key is required")
	}
	if c.Collection == "" {
		return fmt.Errorf("typesense collection is required")
	}
	return nil
}

type client struct {
	ts  *typesense.Client
	cfg Config
}

// New creates a search client backed by a Typesense collection of
// career-transition articles (fields: title, body, url).
func New(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("search config: %w", err)
	}

	ts := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(10*time.Second),
	)

	return &client{ts: ts, cfg: cfg}, nil
}

func (c *client) Search(ctx context.Context, query string, maxResults int) ([]Document, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.ts.Collection(c.cfg.Collection).Documents().Search(ctx, &api.SearchCollectionParams{
		Q:       pointer.String(query),
		QueryBy: pointer.String("title,body"),
		PerPage: pointer.Int(maxResults),
	})
	if err != nil {
		return nil, fmt.Errorf("typesense search %q: %w", query, err)
	}

	var docs []Document
	if result.Hits != nil {
		for _, hit := range *result.Hits {
			if hit.Document == nil {
				continue
			}
			docs = append(docs, fromHit(*hit.Document))
		}
	}

	slog.DebugContext(ctx, "search completed",
		"query", query,
		"hits", len(docs),
		"duration_ms", time.Since(start).Milliseconds())

	return docs, nil
}

func fromHit(doc map[string]any) Document {
	return Document{
		Title: stringField(doc, "title"),
		Body:  stringField(doc, "body"),
		URL:   stringField(doc, "url"),
	}
}

func stringField(doc map[string]any, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}
