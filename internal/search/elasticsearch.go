package search

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/citypulse/config"
	"example.com/citypulse/internal/models"
)

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexEvent indexes one merged canonical event. The document id is the
// event id, so re-indexing the same event on every discovery is an upsert.
func (c *ElasticClient) IndexEvent(ctx context.Context, event *models.Event) error {
	doc := map[string]interface{}{
		"id":           event.ID,
		"title":        event.Title,
		"primary_date": event.PrimaryDate,
		"primary_time": event.PrimaryTime,
		"location":     event.Location,
		"address":      event.Address,
		"city":         event.City,
		"region":       event.Region,
		"category":     string(event.Category),
		"price":        event.Price,
		"ticket_url":   event.TicketURL,
		"description":  event.Description,
		"source":       event.Source,
	}
	if event.Coordinates != nil {
		doc["coordinates"] = map[string]float64{
			"lat": event.Coordinates.Latitude,
			"lon": event.Coordinates.Longitude,
		}
	}

	docJson, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: event.ID,
		Body:       bytes.NewReader(docJson),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}
	return nil
}

// IndexEvents indexes a batch of events, logging and skipping individual
// failures. Indexing is best-effort; discovery never depends on it.
func (c *ElasticClient) IndexEvents(ctx context.Context, events []models.Event) {
	for i := range events {
		if err := c.IndexEvent(ctx, &events[i]); err != nil {
			log.Warn().Err(err).Str("event_id", events[i].ID).Msg("Failed to index event")
		}
	}
}

// SearchEvents runs a keyword match over indexed events
func (c *ElasticClient) SearchEvents(ctx context.Context, keyword string, size int) ([]map[string]interface{}, error) {
	if size <= 0 {
		size = 25
	}
	query := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  keyword,
				"fields": []string{"title^3", "description", "location", "city"},
			},
		},
		"sort": []map[string]interface{}{
			{"primary_date": map[string]string{"order": "asc"}},
		},
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}
	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		docs = append(docs, source)
	}
	return docs, nil
}
