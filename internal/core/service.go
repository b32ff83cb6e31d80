package core

import (
	"context"
	"errors"
	"time"

	"formulacore/internal/infra/persistence/memory"
	"formulacore/pkg/domain"
)

// Service exposes normalization and transactional record operations.
type Service struct {
	store   domain.PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger; nil keeps the no-op logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span factory used around operations.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the clock used to time operations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

func (s *Service) observe(ctx context.Context, op string, fn func(context.Context) error, keyvals ...any) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.now()
	err := fn(ctx)
	elapsed := s.now().Sub(start)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	span.End(err)

	fields := append([]any{"operation", op, "duration_ms", elapsed.Milliseconds()}, keyvals...)
	var verr *domain.ValidationError
	switch {
	case err == nil:
		s.logger.Debug("operation completed", fields...)
	case errors.As(err, &verr):
		s.logger.Warn("operation rejected input", append(fields, "fields", verr.Fields(), "error", err.Error())...)
	default:
		s.logger.Error("operation failed", append(fields, "error", err.Error())...)
	}
	return err
}

// NormalizeConstituent converts text to a Constituent without persisting it.
func (s *Service) NormalizeConstituent(ctx context.Context, input domain.ConstituentText, cctx domain.ConstituentContext) (domain.Constituent, error) {
	var out domain.Constituent
	err := s.observe(ctx, "normalize_constituent", func(context.Context) error {
		var err error
		out, err = domain.NormalizeConstituent(input, cctx)
		return err
	})
	return out, err
}

// NormalizeLipid converts text to a Lipid without persisting it.
func (s *Service) NormalizeLipid(ctx context.Context, input domain.LipidText) (domain.Lipid, error) {
	var out domain.Lipid
	err := s.observe(ctx, "normalize_lipid", func(context.Context) error {
		var err error
		out, err = domain.NormalizeLipid(input)
		return err
	})
	return out, err
}

// RecordConstituent normalizes input and stores the result under label.
func (s *Service) RecordConstituent(ctx context.Context, label string, input domain.ConstituentText, cctx domain.ConstituentContext) (domain.ConstituentRecord, error) {
	var created domain.ConstituentRecord
	err := s.observe(ctx, "record_constituent", func(ctx context.Context) error {
		c, err := domain.NormalizeConstituent(input, cctx)
		if err != nil {
			return err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateConstituent(domain.ConstituentRecord{Base: domain.Base{Label: label}, Constituent: c})
			return err
		})
	}, "label", label)
	return created, err
}

// RecordLipid normalizes input and stores the result under label.
func (s *Service) RecordLipid(ctx context.Context, label string, input domain.LipidText) (domain.LipidRecord, error) {
	var created domain.LipidRecord
	err := s.observe(ctx, "record_lipid", func(ctx context.Context) error {
		l, err := domain.NormalizeLipid(input)
		if err != nil {
			return err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateLipid(domain.LipidRecord{Base: domain.Base{Label: label}, Lipid: l})
			return err
		})
	}, "label", label)
	return created, err
}

// ListConstituents returns stored constituents ordered by creation.
func (s *Service) ListConstituents(ctx context.Context) ([]domain.ConstituentRecord, error) {
	var out []domain.ConstituentRecord
	err := s.observe(ctx, "list_constituents", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.ListConstituents()
			return nil
		})
	})
	return out, err
}

// ListLipids returns stored lipids ordered by creation.
func (s *Service) ListLipids(ctx context.Context) ([]domain.LipidRecord, error) {
	var out []domain.LipidRecord
	err := s.observe(ctx, "list_lipids", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			out = v.ListLipids()
			return nil
		})
	})
	return out, err
}

// GetConstituent returns the constituent with id or domain.ErrNotFound.
func (s *Service) GetConstituent(ctx context.Context, id string) (domain.ConstituentRecord, error) {
	var out domain.ConstituentRecord
	err := s.observe(ctx, "get_constituent", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			rec, ok := v.FindConstituent(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityConstituent, ID: id}
			}
			out = rec
			return nil
		})
	}, "id", id)
	return out, err
}

// GetLipid returns the lipid with id or domain.ErrNotFound.
func (s *Service) GetLipid(ctx context.Context, id string) (domain.LipidRecord, error) {
	var out domain.LipidRecord
	err := s.observe(ctx, "get_lipid", func(ctx context.Context) error {
		return s.store.View(ctx, func(v domain.TransactionView) error {
			rec, ok := v.FindLipid(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityLipid, ID: id}
			}
			out = rec
			return nil
		})
	}, "id", id)
	return out, err
}

// DeleteConstituent removes a stored constituent.
func (s *Service) DeleteConstituent(ctx context.Context, id string) error {
	return s.observe(ctx, "delete_constituent", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteConstituent(id)
		})
	}, "id", id)
}

// DeleteLipid removes a stored lipid.
func (s *Service) DeleteLipid(ctx context.Context, id string) error {
	return s.observe(ctx, "delete_lipid", func(ctx context.Context) error {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteLipid(id)
		})
	}, "id", id)
}
