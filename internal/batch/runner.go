package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"formulacore/internal/blob"
	"formulacore/internal/core"
	"formulacore/pkg/domain"
)

// DefaultConcurrency bounds in-flight entries when no limit is configured.
const DefaultConcurrency = 4

// Recorder stores normalized entries. *core.Service satisfies it.
type Recorder interface {
	RecordConstituent(ctx context.Context, label string, input domain.ConstituentText, cctx domain.ConstituentContext) (domain.ConstituentRecord, error)
	RecordLipid(ctx context.Context, label string, input domain.LipidText) (domain.LipidRecord, error)
}

var _ Recorder = (*core.Service)(nil)

// Runner processes documents.
type Runner struct {
	recorder    Recorder
	blobs       blob.Store
	logger      core.Logger
	concurrency int
	newID       func() string
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithConcurrency bounds parallel entry processing; values below one are ignored.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithBlobStore sets the destination used by Publish.
func WithBlobStore(store blob.Store) Option {
	return func(r *Runner) { r.blobs = store }
}

// WithLogger sets the logger used for run summaries.
func WithLogger(l core.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReportIDGenerator overrides report ID generation.
func WithReportIDGenerator(gen func() string) Option {
	return func(r *Runner) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithClock overrides the clock stamping reports.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRunner builds a Runner that records accepted entries through recorder.
func NewRunner(recorder Recorder, opts ...Option) *Runner {
	r := &Runner{
		recorder:    recorder,
		logger:      nopLogger{},
		concurrency: DefaultConcurrency,
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type outcome struct {
	accepted *Accepted
	rejected *Rejected
}

// Run normalizes and records every entry. Invalid entries are reported, not
// fatal; a store failure or cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, doc Document) (Report, error) {
	report := Report{ID: r.newID(), StartedAt: r.now()}
	results := make([]outcome, doc.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, entry := range doc.Constituents {
		g.Go(func() error {
			res, err := r.constituent(gctx, i, entry)
			results[i] = res
			return err
		})
	}
	offset := len(doc.Constituents)
	for i, entry := range doc.Lipids {
		g.Go(func() error {
			res, err := r.lipid(gctx, i, entry)
			results[offset+i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error("batch aborted", "report_id", report.ID, "error", err.Error())
		return Report{}, fmt.Errorf("batch %s: %w", report.ID, err)
	}

	report.Accepted = []Accepted{}
	report.Rejected = []Rejected{}
	for _, res := range results {
		switch {
		case res.accepted != nil:
			report.Accepted = append(report.Accepted, *res.accepted)
		case res.rejected != nil:
			report.Rejected = append(report.Rejected, *res.rejected)
		}
	}
	report.FinishedAt = r.now()
	r.logger.Info("batch completed", "report_id", report.ID, "accepted", len(report.Accepted), "rejected", len(report.Rejected))
	return report, nil
}

func (r *Runner) constituent(ctx context.Context, index int, e ConstituentEntry) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	cctx, volumeProblem := ParseVolume(e.Volume)
	rec, err := r.recorder.RecordConstituent(ctx, e.Label, e.Text(), cctx)
	if err != nil {
		if problems := ProblemsOf(err); problems != nil {
			problems = OverrideProblem(problems, volumeProblem)
			return outcome{rejected: &Rejected{Index: index, Kind: domain.EntityConstituent, Label: e.Label, Problems: problems}}, nil
		}
		return outcome{}, err
	}
	if volumeProblem != nil {
		return outcome{}, fmt.Errorf("constituent %d: recorder accepted an unusable volume", index)
	}
	return outcome{accepted: &Accepted{Index: index, Kind: domain.EntityConstituent, Label: e.Label, ID: rec.ID}}, nil
}

func (r *Runner) lipid(ctx context.Context, index int, e LipidEntry) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	rec, err := r.recorder.RecordLipid(ctx, e.Label, e.Text())
	if err != nil {
		if problems := ProblemsOf(err); problems != nil {
			return outcome{rejected: &Rejected{Index: index, Kind: domain.EntityLipid, Label: e.Label, Problems: problems}}, nil
		}
		return outcome{}, err
	}
	return outcome{accepted: &Accepted{Index: index, Kind: domain.EntityLipid, Label: e.Label, ID: rec.ID}}, nil
}

// ParseVolume reads a textual constituent volume with the numeric grammar of
// the other fields. An unusable value yields a NaN volume, which normalization
// rejects, together with the Problem describing the original text.
func ParseVolume(t domain.Text) (domain.ConstituentContext, *Problem) {
	raw, ok := t.Value()
	if !ok {
		return domain.ConstituentContext{Volume: math.NaN()}, &Problem{Field: domain.FieldVolume, Code: domain.CodeMissingField}
	}
	v, err := domain.ParseNumber(raw)
	if err != nil {
		return domain.ConstituentContext{Volume: math.NaN()}, &Problem{Field: domain.FieldVolume, Code: domain.CodeInvalidNumber, Raw: raw}
	}
	return domain.ConstituentContext{Volume: v}, nil
}

// OverrideProblem replaces the problem reported for p.Field with p. A nil p
// leaves problems unchanged.
func OverrideProblem(problems []Problem, p *Problem) []Problem {
	if p == nil {
		return problems
	}
	for i := range problems {
		if problems[i].Field == p.Field {
			problems[i] = *p
			return problems
		}
	}
	return append(problems, *p)
}

// ProblemsOf flattens a *domain.ValidationError; other errors yield nil.
func ProblemsOf(err error) []Problem {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	out := make([]Problem, 0, len(verr.Problems))
	for _, p := range verr.Problems {
		prob := Problem{Field: p.FieldName(), Code: p.Code()}
		var inv *domain.InvalidNumberError
		if errors.As(p, &inv) {
			prob.Raw = inv.Raw
		}
		out = append(out, prob)
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
