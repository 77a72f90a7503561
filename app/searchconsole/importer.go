package searchconsole

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ymatsuda/rankwatch/app/clock"
	"github.com/ymatsuda/rankwatch/app/database"
	"github.com/ymatsuda/rankwatch/app/evaluation"
)

// Client imports ranking metrics from the Search Console analytics API and
// stores them through the metrics repository. It satisfies
// evaluation.MetricsImporter.
type Client struct {
	baseURL     string
	apiKey      string
	userAgent   string
	httpClient  *http.Client
	configRepo  database.ConfigRepository
	metricsRepo database.MetricsRepository
}

func NewClient(baseURL, apiKey, userAgent string, configRepo database.ConfigRepository,
	metricsRepo database.MetricsRepository) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		userAgent:   userAgent,
		configRepo:  configRepo,
		metricsRepo: metricsRepo,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type queryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	SearchType string   `json:"searchType,omitempty"`
	RowLimit   int      `json:"rowLimit,omitempty"`
}

type queryResponse struct {
	Rows []queryRow `json:"rows"`
}

type queryRow struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    *float64 `json:"position"`
}

// Import refreshes the metrics window for every property the user has
// registered configs under. A failure on any property fails the import; the
// engine records it as an import_failed attempt and the next cycle retries.
func (c *Client) Import(ctx context.Context, userID string, opts evaluation.ImportOptions) error {
	configs, err := c.configRepo.ListActiveByUser(userID, "")
	if err != nil {
		return fmt.Errorf("failed to resolve properties for user: %w", err)
	}

	properties := make(map[string]bool)
	for _, config := range configs {
		properties[config.PropertyURI] = true
	}

	for property := range properties {
		if err := c.importProperty(ctx, userID, property, opts); err != nil {
			return fmt.Errorf("failed to import metrics for %s: %w", property, err)
		}
	}

	return nil
}

func (c *Client) importProperty(ctx context.Context, userID, property string, opts evaluation.ImportOptions) error {
	searchType := opts.SearchType
	if searchType == "" {
		searchType = "web"
	}

	body, err := json.Marshal(queryRequest{
		StartDate:  clock.FormatDate(opts.StartDate),
		EndDate:    clock.FormatDate(opts.EndDate),
		Dimensions: []string{"page", "date"},
		SearchType: searchType,
		RowLimit:   opts.MaxRows,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal query request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query",
		c.baseURL, url.PathEscape(property))

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query search analytics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("search analytics API error: %d %s: %s", resp.StatusCode, resp.Status, data)
	}

	var parsed queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode search analytics response: %w", err)
	}

	metrics := make([]database.RankingMetric, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		if len(row.Keys) < 2 {
			continue
		}

		metricDate, err := clock.ParseDate(row.Keys[1])
		if err != nil {
			slog.Warn("Skipping metric row with unparseable date",
				"property", property, "date", row.Keys[1])
			continue
		}

		metrics = append(metrics, database.RankingMetric{
			UserID:        userID,
			PropertyURI:   property,
			ContentItemID: row.Keys[0],
			MetricDate:    metricDate,
			Position:      row.Position,
			Clicks:        int(row.Clicks),
			Impressions:   int(row.Impressions),
			CTR:           row.CTR,
		})
	}

	if err := c.metricsRepo.UpsertMetrics(metrics); err != nil {
		return fmt.Errorf("failed to store imported metrics: %w", err)
	}

	slog.Debug("Imported search analytics window",
		"user_id", userID, "property", property, "rows", len(metrics))

	return nil
}
