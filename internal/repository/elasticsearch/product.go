package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/utafrali/shopease/internal/domain"
	"github.com/utafrali/shopease/internal/repository"
	"github.com/utafrali/shopease/pkg/pagination"
)

// DefaultIndexName is the index product documents are written to.
const DefaultIndexName = "storefront_products"

const reindexPageSize = 100

const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "normalizer": {
        "lowercase": { "type": "custom", "filter": ["lowercase"] }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":          { "type": "keyword" },
      "name":        { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "slug":        { "type": "keyword" },
      "description": { "type": "text" },
      "category":    { "type": "keyword", "normalizer": "lowercase" },
      "image_url":   { "type": "keyword", "index": false },
      "price":       { "type": "long" },
      "stock":       { "type": "integer" },
      "created_at":  { "type": "date" },
      "updated_at":  { "type": "date" }
    }
  }
}`

// ProductRepository answers free-text catalog searches from an Elasticsearch
// index and delegates everything else to the primary store. Writes go to the
// primary store first and are then mirrored into the index.
type ProductRepository struct {
	repository.ProductRepository
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source domain.Product `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID    string `json:"_id"`
			Error struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// NewClient creates a client for the cluster at url.
func NewClient(url string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{url}})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: create client: %w", err)
	}
	return client, nil
}

// NewProductRepository wraps primary with the index named index. An empty
// name selects DefaultIndexName.
func NewProductRepository(primary repository.ProductRepository, client *elasticsearch.Client, index string, logger *slog.Logger) *ProductRepository {
	if index == "" {
		index = DefaultIndexName
	}
	return &ProductRepository{
		ProductRepository: primary,
		client:            client,
		index:             index,
		logger:            logger,
	}
}

// Ping checks whether the cluster is reachable.
func (r *ProductRepository) Ping(ctx context.Context) error {
	res, err := r.client.Ping(r.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// EnsureIndex creates the product index when it does not exist.
func (r *ProductRepository) EnsureIndex(ctx context.Context) error {
	res, err := r.client.Indices.Exists([]string{r.index}, r.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = r.client.Indices.Create(
		r.index,
		r.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		r.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("create index", res.Status(), res.Body)
	}
	r.logger.InfoContext(ctx, "search index created", slog.String("index", r.index))
	return nil
}

// Reindex copies every product of the primary store into the index.
func (r *ProductRepository) Reindex(ctx context.Context) error {
	indexed := 0
	for page := 1; ; page++ {
		params := pagination.Params{Page: page, PerPage: reindexPageSize, Offset: (page - 1) * reindexPageSize}
		products, total, err := r.ProductRepository.List(ctx, domain.ProductFilter{}, params)
		if err != nil {
			return fmt.Errorf("reindex: list products: %w", err)
		}
		if err := r.bulkIndex(ctx, products); err != nil {
			return err
		}
		indexed += len(products)
		if len(products) == 0 || indexed >= total {
			break
		}
	}
	r.logger.InfoContext(ctx, "search index rebuilt",
		slog.String("index", r.index),
		slog.Int("products", indexed),
	)
	return nil
}

// List serves filters with search text from the index. A failing index falls
// back to the primary store.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	if filter.Search == "" {
		return r.ProductRepository.List(ctx, filter, page)
	}

	products, total, err := r.search(ctx, filter, page)
	if err != nil {
		r.logger.WarnContext(ctx, "search index unavailable, falling back to store",
			slog.String("error", err.Error()),
		)
		return r.ProductRepository.List(ctx, filter, page)
	}
	return products, total, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if err := r.ProductRepository.Create(ctx, p); err != nil {
		return err
	}
	r.mirror(ctx, p)
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	if err := r.ProductRepository.Update(ctx, p); err != nil {
		return err
	}
	r.mirror(ctx, p)
	return nil
}

func (r *ProductRepository) SetStock(ctx context.Context, id string, stock int, at time.Time) error {
	if err := r.ProductRepository.SetStock(ctx, id, stock, at); err != nil {
		return err
	}
	p, err := r.ProductRepository.Get(ctx, id)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to reload product for indexing",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	r.mirror(ctx, p)
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	if err := r.ProductRepository.Delete(ctx, id); err != nil {
		return err
	}

	res, err := r.client.Delete(r.index, id,
		r.client.Delete.WithRefresh("true"),
		r.client.Delete.WithContext(ctx),
	)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to remove product from search index",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer func() { _ = res.Body.Close() }()

	// 404: the document was never indexed.
	if res.IsError() && res.StatusCode != 404 {
		r.logger.WarnContext(ctx, "failed to remove product from search index",
			slog.String("product_id", id),
			slog.String("status", res.Status()),
		)
	}
	return nil
}

// mirror writes p to the index. The primary store stays authoritative, so a
// failure is only logged.
func (r *ProductRepository) mirror(ctx context.Context, p *domain.Product) {
	if err := r.indexOne(ctx, p); err != nil {
		r.logger.WarnContext(ctx, "failed to index product",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *ProductRepository) indexOne(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(data),
		r.client.Index.WithDocumentID(p.ID),
		r.client.Index.WithRefresh("true"),
		r.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index product: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("index product", res.Status(), res.Body)
	}
	return nil
}

func (r *ProductRepository) bulkIndex(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range products {
		action := map[string]any{"index": map[string]any{"_index": r.index, "_id": products[i].ID}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("bulk index: encode action: %w", err)
		}
		if err := enc.Encode(products[i]); err != nil {
			return fmt.Errorf("bulk index: encode document: %w", err)
		}
	}

	res, err := r.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		r.client.Bulk.WithIndex(r.index),
		r.client.Bulk.WithRefresh("true"),
		r.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return responseError("bulk index", res.Status(), res.Body)
	}

	var bulk bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("bulk index: decode response: %w", err)
	}
	if bulk.Errors {
		var failed []string
		for _, item := range bulk.Items {
			if item.Index.Error.Type != "" {
				failed = append(failed, fmt.Sprintf("id=%s: %s: %s", item.Index.ID, item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		return fmt.Errorf("bulk index: partial errors: %s", strings.Join(failed, "; "))
	}
	return nil
}

func (r *ProductRepository) search(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	data, err := json.Marshal(buildQuery(filter, page))
	if err != nil {
		return nil, 0, fmt.Errorf("search: marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(data)),
		r.client.Search.WithTrackTotalHits(true),
		r.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, 0, responseError("search", res.Status(), res.Body)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, 0, fmt.Errorf("search: decode response: %w", err)
	}

	products := make([]domain.Product, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		products = append(products, hit.Source)
	}
	return products, sr.Hits.Total.Value, nil
}

// buildQuery matches search text against name and description, applies the
// category and price filters, and keeps the store's oldest-first order.
func buildQuery(filter domain.ProductFilter, page pagination.Params) map[string]any {
	must := []any{
		map[string]any{
			"multi_match": map[string]any{
				"query":         filter.Search,
				"fields":        []string{"name^3", "description"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		},
	}

	var filters []any
	if filter.Category != "" {
		filters = append(filters, map[string]any{
			"term": map[string]any{"category": filter.Category},
		})
	}
	if filter.MinPrice != nil || filter.MaxPrice != nil {
		bounds := map[string]any{}
		if filter.MinPrice != nil {
			bounds["gte"] = int64(*filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			bounds["lte"] = int64(*filter.MaxPrice)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{"price": bounds},
		})
	}

	boolQuery := map[string]any{"must": must}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"sort": []any{
			map[string]any{"created_at": "asc"},
			map[string]any{"id": "asc"},
		},
		"from":             page.Offset,
		"size":             page.PerPage,
		"track_total_hits": true,
	}
}

func responseError(op, status string, body io.Reader) error {
	var er errorResponse
	if err := json.NewDecoder(body).Decode(&er); err == nil && er.Error.Type != "" {
		return fmt.Errorf("%s: %s: %s", op, er.Error.Type, er.Error.Reason)
	}
	return fmt.Errorf("%s: unexpected status %s", op, status)
}
