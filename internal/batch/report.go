package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"formulacore/internal/blob"
	"formulacore/pkg/domain"
)

// ReportPrefix is the blob key prefix reports are published under.
const ReportPrefix = "reports/"

// Report summarises one Run. Entries keep document order, constituents first.
type Report struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Accepted   []Accepted `json:"accepted"`
	Rejected   []Rejected `json:"rejected"`
}

// Accepted is a stored entry. Index is the position within its section.
type Accepted struct {
	Index int               `json:"index"`
	Kind  domain.EntityType `json:"kind"`
	Label string            `json:"label,omitempty"`
	ID    string            `json:"id"`
}

// Rejected is an entry that failed validation.
type Rejected struct {
	Index    int               `json:"index"`
	Kind     domain.EntityType `json:"kind"`
	Label    string            `json:"label,omitempty"`
	Problems []Problem         `json:"problems"`
}

// Problem is one field failure.
type Problem struct {
	Field string           `json:"field"`
	Code  domain.ErrorCode `json:"code"`
	Raw   string           `json:"raw,omitempty"`
}

// ReportKey returns the blob key for a report ID.
func ReportKey(id string) string { return ReportPrefix + id + ".json" }

// ErrNoBlobStore is returned by Publish when the Runner has no blob store.
var ErrNoBlobStore = errors.New("batch: no blob store configured")

// Publish writes report as JSON to the blob store.
func (r *Runner) Publish(ctx context.Context, report Report) (blob.Info, error) {
	if r.blobs == nil {
		return blob.Info{}, ErrNoBlobStore
	}
	if strings.TrimSpace(report.ID) == "" {
		return blob.Info{}, fmt.Errorf("publish report: empty id")
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode report %s: %w", report.ID, err)
	}
	info, err := r.blobs.Put(ctx, ReportKey(report.ID), bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata: map[string]string{
			"accepted": strconv.Itoa(len(report.Accepted)),
			"rejected": strconv.Itoa(len(report.Rejected)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("publish report %s: %w", report.ID, err)
	}
	r.logger.Info("report published", "report_id", report.ID, "key", info.Key, "driver", string(r.blobs.Driver()))
	return info, nil
}

// ListReports returns the IDs of published reports in key order.
func ListReports(ctx context.Context, store blob.Store) ([]string, error) {
	infos, err := store.List(ctx, ReportPrefix)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		name := path.Base(info.Key)
		if !strings.HasSuffix(name, ".json") || path.Dir(info.Key)+"/" != ReportPrefix {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// FetchReport loads a published report.
func FetchReport(ctx context.Context, store blob.Store, id string) (Report, error) {
	_, rc, err := store.Get(ctx, ReportKey(id))
	if err != nil {
		return Report{}, fmt.Errorf("fetch report %s: %w", id, err)
	}
	defer func() { _ = rc.Close() }()
	var report Report
	if err := json.NewDecoder(rc).Decode(&report); err != nil {
		return Report{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return report, nil
}
