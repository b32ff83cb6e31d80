package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"formulacore/internal/blob"
	"formulacore/internal/core"
	"formulacore/pkg/domain"
)

const jsonDoc = `{
  "constituents": [
    {"label": "glucose", "molecularWeight": "180.16", "concentration": 5, "proportion": "0.25", "volume": "10"},
    {"label": "broken", "molecularWeight": "abc", "concentration": "1", "volume": null},
    {"label": "sodium", "molecularWeight": "22.99", "concentration": "1e-3", "proportion": "1", "volume": 2.5}
  ],
  "lipids": [
    {"label": "DOPC", "concentration": "12.5", "volume": "3"},
    {"label": "empty"}
  ]
}`

const yamlDoc = `constituents:
  - label: glucose
    molecularWeight: 180.16
    concentration: "5"
    proportion: 0.25
    volume: 10
lipids:
  - label: DOPC
    concentration: 12.5
    volume: "3"
  - label: bad
    concentration: NaN
    volume: 1
`

func fixedIDs() Option {
	return WithReportIDGenerator(func() string { return "report-1" })
}

func TestDecodeJSONAndYAML(t *testing.T) {
	doc, err := Decode(strings.NewReader(jsonDoc), FormatJSON)
	if err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if doc.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", doc.Len())
	}
	if raw, ok := doc.Constituents[0].Concentration.Value(); !ok || raw != "5" {
		t.Fatalf("numeric literal should keep its spelling, got %q %v", raw, ok)
	}
	if doc.Constituents[1].Volume.IsPresent() || doc.Lipids[1].Concentration.IsPresent() {
		t.Fatalf("null and missing keys must be absent")
	}

	ydoc, err := Decode(strings.NewReader(yamlDoc), FormatYAML)
	if err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if len(ydoc.Constituents) != 1 || len(ydoc.Lipids) != 2 {
		t.Fatalf("unexpected yaml document %+v", ydoc)
	}
	if raw, _ := ydoc.Constituents[0].MolecularWeight.Value(); raw != "180.16" {
		t.Fatalf("unexpected yaml scalar %q", raw)
	}
}

func TestDecodeRejectsUnknownFieldsAndFormats(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"constituents":[{"mass":"1"}]}`), FormatJSON); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Decode(strings.NewReader("lipids:\n  - colour: red\n"), FormatYAML); err == nil {
		t.Fatalf("expected unknown yaml field error")
	}
	if _, err := Decode(strings.NewReader(`{}`), Format("toml")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("expected parse format error")
	}
	if f, _ := ParseFormat("YML"); f != FormatYAML {
		t.Fatalf("expected yaml, got %s", f)
	}
	if FormatForPath("doc.yaml") != FormatYAML || FormatForPath("doc.txt") != FormatJSON {
		t.Fatalf("unexpected format guess")
	}
}

func TestRunAcceptsAndRejectsInDocumentOrder(t *testing.T) {
	svc := core.NewInMemoryService()
	doc, err := Decode(strings.NewReader(jsonDoc), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	report, err := NewRunner(svc, WithConcurrency(3), fixedIDs()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.ID != "report-1" || report.FinishedAt.Before(report.StartedAt) {
		t.Fatalf("unexpected report header %+v", report)
	}
	if len(report.Accepted) != 3 || len(report.Rejected) != 2 {
		t.Fatalf("unexpected split %+v", report)
	}
	wantAccepted := []string{"glucose", "sodium", "DOPC"}
	for i, a := range report.Accepted {
		if a.Label != wantAccepted[i] || a.ID == "" {
			t.Fatalf("accepted[%d] = %+v", i, a)
		}
	}
	broken := report.Rejected[0]
	if broken.Kind != domain.EntityConstituent || broken.Index != 1 {
		t.Fatalf("unexpected rejected entry %+v", broken)
	}
	wantProblems := []Problem{
		{Field: domain.FieldMolecularWeight, Code: domain.CodeInvalidNumber, Raw: "abc"},
		{Field: domain.FieldProportion, Code: domain.CodeMissingField},
		{Field: domain.FieldVolume, Code: domain.CodeMissingField},
	}
	if fmt.Sprint(broken.Problems) != fmt.Sprint(wantProblems) {
		t.Fatalf("problems = %+v, want %+v", broken.Problems, wantProblems)
	}
	empty := report.Rejected[1]
	if empty.Kind != domain.EntityLipid || len(empty.Problems) != 2 {
		t.Fatalf("unexpected lipid rejection %+v", empty)
	}

	stored, err := svc.ListConstituents(context.Background())
	if err != nil || len(stored) != 2 {
		t.Fatalf("expected two stored constituents, got %d %v", len(stored), err)
	}
	for _, c := range stored {
		if c.Label == "sodium" && (c.Volume != 2.5 || c.Concentration != 0.001) {
			t.Fatalf("unexpected sodium %+v", c)
		}
	}
}

func TestRunRejectsNonFiniteYAMLValue(t *testing.T) {
	doc, err := Decode(strings.NewReader(yamlDoc), FormatYAML)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	report, err := NewRunner(core.NewInMemoryService()).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Rejected) != 1 || report.Rejected[0].Problems[0].Code != domain.CodeInvalidNumber {
		t.Fatalf("expected NaN rejection, got %+v", report.Rejected)
	}
}

type warnLog struct {
	mu    sync.Mutex
	warns [][]any
}

func (l *warnLog) Debug(string, ...any) {}
func (l *warnLog) Info(string, ...any)  {}
func (l *warnLog) Error(string, ...any) {}
func (l *warnLog) Warn(_ string, keyvals ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, keyvals)
}

func TestRunRejectsUnusableVolumeThroughService(t *testing.T) {
	logs := &warnLog{}
	metrics := core.NewExpvarMetricsRecorder("")
	svc := core.NewInMemoryService(core.WithLogger(logs), core.WithMetricsRecorder(metrics))
	doc := Document{Constituents: []ConstituentEntry{
		{Label: "hex", MolecularWeight: domain.Present("1"), Concentration: domain.Present("1"), Proportion: domain.Present("1"), Volume: domain.Present("0x1p3")},
		{Label: "partial", MolecularWeight: domain.Present("1")},
	}}
	report, err := NewRunner(svc).Run(context.Background(), doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Accepted) != 0 || len(report.Rejected) != 2 {
		t.Fatalf("unexpected split %+v", report)
	}
	hex := []Problem{{Field: domain.FieldVolume, Code: domain.CodeInvalidNumber, Raw: "0x1p3"}}
	if fmt.Sprint(report.Rejected[0].Problems) != fmt.Sprint(hex) {
		t.Fatalf("problems = %+v, want %+v", report.Rejected[0].Problems, hex)
	}
	partial := []Problem{
		{Field: domain.FieldConcentration, Code: domain.CodeMissingField},
		{Field: domain.FieldProportion, Code: domain.CodeMissingField},
		{Field: domain.FieldVolume, Code: domain.CodeMissingField},
	}
	if fmt.Sprint(report.Rejected[1].Problems) != fmt.Sprint(partial) {
		t.Fatalf("problems = %+v, want %+v", report.Rejected[1].Problems, partial)
	}

	if got := metrics.Snapshot().Operations["record_constituent"].Error; got != 2 {
		t.Fatalf("expected two failed record_constituent observations, got %d", got)
	}
	logs.mu.Lock()
	defer logs.mu.Unlock()
	if len(logs.warns) != 2 {
		t.Fatalf("expected a warning per rejected entry, got %v", logs.warns)
	}
	for _, kv := range logs.warns {
		if fmt.Sprint(kv[:2]) != "[operation record_constituent]" {
			t.Fatalf("unexpected warning fields %v", kv)
		}
	}
}

func TestOverrideProblem(t *testing.T) {
	base := []Problem{{Field: domain.FieldConcentration, Code: domain.CodeMissingField}, {Field: domain.FieldVolume, Code: domain.CodeInvalidNumber, Raw: "NaN"}}
	if got := OverrideProblem(append([]Problem(nil), base...), nil); fmt.Sprint(got) != fmt.Sprint(base) {
		t.Fatalf("nil override changed problems: %+v", got)
	}
	got := OverrideProblem(append([]Problem(nil), base...), &Problem{Field: domain.FieldVolume, Code: domain.CodeMissingField})
	if len(got) != 2 || got[1].Code != domain.CodeMissingField || got[1].Raw != "" {
		t.Fatalf("unexpected override %+v", got)
	}
	got = OverrideProblem(nil, &Problem{Field: domain.FieldVolume, Code: domain.CodeMissingField})
	if len(got) != 1 {
		t.Fatalf("expected appended problem, got %+v", got)
	}
}

type blockingRecorder struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	fail    error
}

func (b *blockingRecorder) enter() {
	b.mu.Lock()
	b.active++
	if b.active > b.maxSeen {
		b.maxSeen = b.active
	}
	b.mu.Unlock()
	time.Sleep(2 * time.Millisecond)
	b.mu.Lock()
	b.active--
	b.mu.Unlock()
}

func (b *blockingRecorder) RecordConstituent(_ context.Context, label string, _ domain.ConstituentText, _ domain.ConstituentContext) (domain.ConstituentRecord, error) {
	b.enter()
	return domain.ConstituentRecord{Base: domain.Base{ID: label}}, b.fail
}

func (b *blockingRecorder) RecordLipid(_ context.Context, label string, _ domain.LipidText) (domain.LipidRecord, error) {
	b.enter()
	return domain.LipidRecord{Base: domain.Base{ID: label}}, b.fail
}

func lipidDoc(n int) Document {
	doc := Document{}
	for i := 0; i < n; i++ {
		doc.Lipids = append(doc.Lipids, LipidEntry{Label: fmt.Sprintf("l%d", i), Concentration: domain.Present("1"), Volume: domain.Present("1")})
	}
	return doc
}

func TestRunHonoursConcurrencyLimit(t *testing.T) {
	rec := &blockingRecorder{}
	report, err := NewRunner(rec, WithConcurrency(2), WithConcurrency(0)).Run(context.Background(), lipidDoc(10))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(report.Accepted) != 10 {
		t.Fatalf("expected all accepted, got %d", len(report.Accepted))
	}
	if rec.maxSeen > 2 {
		t.Fatalf("concurrency limit exceeded: %d", rec.maxSeen)
	}
}

func TestRunAbortsOnStoreFailureAndCancellation(t *testing.T) {
	boom := errors.New("disk full")
	if _, err := NewRunner(&blockingRecorder{fail: boom}).Run(context.Background(), lipidDoc(3)); !errors.Is(err, boom) {
		t.Fatalf("expected store failure, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewRunner(&blockingRecorder{}).Run(ctx, lipidDoc(3)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestPublishListFetch(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	runner := NewRunner(core.NewInMemoryService(), WithBlobStore(store), fixedIDs())
	doc, err := Decode(strings.NewReader(jsonDoc), FormatJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	report, err := runner.Run(ctx, doc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	info, err := runner.Publish(ctx, report)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if info.Key != "reports/report-1.json" || info.Metadata["accepted"] != "3" || info.Metadata["rejected"] != "2" {
		t.Fatalf("unexpected blob info %+v", info)
	}
	if _, err := runner.Publish(ctx, report); !errors.Is(err, blob.ErrExists) {
		t.Fatalf("expected duplicate publish to fail, got %v", err)
	}
	ids, err := ListReports(ctx, store)
	if err != nil || len(ids) != 1 || ids[0] != "report-1" {
		t.Fatalf("list reports: %v %v", ids, err)
	}
	fetched, err := FetchReport(ctx, store, "report-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(fetched.Rejected) != 2 || fetched.Rejected[0].Problems[0].Raw != "abc" {
		t.Fatalf("round-tripped report mismatch %+v", fetched)
	}
	if _, err := FetchReport(ctx, store, "missing"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPublishRequiresStoreAndID(t *testing.T) {
	ctx := context.Background()
	if _, err := NewRunner(core.NewInMemoryService()).Publish(ctx, Report{ID: "x"}); !errors.Is(err, ErrNoBlobStore) {
		t.Fatalf("expected ErrNoBlobStore, got %v", err)
	}
	if _, err := NewRunner(core.NewInMemoryService(), WithBlobStore(blob.NewMemory())).Publish(ctx, Report{}); err == nil {
		t.Fatalf("expected empty id error")
	}
}
