// internal/notify/elasticsearch.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"business-empire/internal/common/database"
	"business-empire/internal/models"
)

// ReportIndexer archives each daily report as one Elasticsearch document so
// the admin panel can search and chart historical runs. The report ID is
// the document ID, which makes a redelivered report an idempotent upsert.
type ReportIndexer struct {
	es    *database.ElasticsearchClient
	index string
}

func NewReportIndexer(es *database.ElasticsearchClient, index string) *ReportIndexer {
	return &ReportIndexer{es: es, index: index}
}

func (n *ReportIndexer) Name() string { return "elasticsearch" }

func (n *ReportIndexer) Notify(ctx context.Context, report *models.DailyReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("report marshal failed: %w", err)
	}

	res, err := n.es.Client.Index(
		n.index,
		bytes.NewReader(payload),
		n.es.Client.Index.WithDocumentID(report.ID),
		n.es.Client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("report index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("report index rejected: %s", res.Status())
	}
	return nil
}
