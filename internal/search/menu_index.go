package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/Skotchmaster/cravings/internal/models"
)

const DefaultMenuIndex = "menu_items"

type Config struct {
	URL      string
	User     string
	Password string
}

func NewClient(cfg Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// menuDoc is the indexed shape of a menu item.
type menuDoc struct {
	ID           uuid.UUID `json:"id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	Price        string    `json:"price"`
	IsAvailable  bool      `json:"is_available"`
}

type MenuIndex struct {
	ES    *elasticsearch.Client
	Index string
}

func NewMenuIndex(es *elasticsearch.Client, index string) *MenuIndex {
	if index == "" {
		index = DefaultMenuIndex
	}
	return &MenuIndex{ES: es, Index: index}
}

func responseError(op string, status int, body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 1024))
	return fmt.Errorf("elasticsearch %s: status %d: %s", op, status, bytes.TrimSpace(raw))
}

func (x *MenuIndex) IndexMenuItem(ctx context.Context, item models.MenuItem) error {
	doc := menuDoc{
		ID:           item.ID,
		RestaurantID: item.RestaurantID,
		Name:         item.Name,
		Description:  item.Description,
		Category:     string(item.Category),
		Price:        item.Price.StringFixed(2),
		IsAvailable:  item.IsAvailable,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encode menu document: %w", err)
	}

	res, err := x.ES.Index(
		x.Index,
		&buf,
		x.ES.Index.WithContext(ctx),
		x.ES.Index.WithDocumentID(item.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index", res.StatusCode, res.Body)
	}
	return nil
}

func (x *MenuIndex) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	res, err := x.ES.Delete(x.Index, id.String(), x.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch delete: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("delete", res.StatusCode, res.Body)
	}
	return nil
}

// SearchMenuItems returns the ids of available menu items matching q, best
// match first.
func (x *MenuIndex) SearchMenuItems(ctx context.Context, q string, limit int) ([]uuid.UUID, error) {
	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     q,
						"fields":    []string{"name^2", "description"},
						"fuzziness": "AUTO",
					},
				},
				"filter": []any{
					map[string]any{"term": map[string]any{"is_available": true}},
				},
			},
		},
		"size":    limit,
		"_source": []string{"id"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}

	res, err := x.ES.Search(
		x.ES.Search.WithContext(ctx),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res.StatusCode, res.Body)
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ID uuid.UUID `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		ids = append(ids, hit.Source.ID)
	}
	return ids, nil
}

// Ping checks that the cluster answers.
func (x *MenuIndex) Ping(ctx context.Context) error {
	res, err := x.ES.Info(x.ES.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("info", res.StatusCode, res.Body)
	}
	return nil
}
