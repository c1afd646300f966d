package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/user/sysguard/pkg/facts"
	"go.uber.org/zap"
)

// Scanner runs every check of a catalogue, one at a time, against a collector
// and merges their fragments into a single FindingSet.
type Scanner struct {
	catalogue *Catalogue
	facts     facts.Collector
	logger    *zap.Logger
}

// NewScanner creates a scanner. A nil logger discards output.
func NewScanner(catalogue *Catalogue, collector facts.Collector, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		catalogue: catalogue,
		facts:     collector,
		logger:    logger,
	}
}

// Scan evaluates the catalogue in declared order. Every declared key is present
// in the result. Cancellation is only honoured between checks, in which case
// no FindingSet is returned.
func (s *Scanner) Scan(ctx context.Context) (*FindingSet, error) {
	values := make(map[string]string, len(s.catalogue.owner))
	start := time.Now()

	for _, chk := range s.catalogue.checks {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("Scan cancelled", zap.String("next_check", chk.ID()), zap.Error(err))
			return nil, fmt.Errorf("scan cancelled before %s: %w", chk.ID(), err)
		}

		checkStart := time.Now()
		frag := s.evaluate(ctx, chk)
		s.merge(values, chk, frag)
		s.logger.Debug("Check finished",
			zap.String("check", chk.ID()),
			zap.Duration("elapsed", time.Since(checkStart)))
	}

	s.logger.Info("Scan complete",
		zap.Int("checks", len(s.catalogue.checks)),
		zap.Int("findings", len(values)),
		zap.Duration("elapsed", time.Since(start)))
	return newFindingSet(values), nil
}

// evaluate isolates a check so a panic degrades to empty findings instead of
// aborting the rest of the scan.
func (s *Scanner) evaluate(ctx context.Context, chk Check) (frag Fragment) {
	logger := s.logger.With(zap.String("check", chk.ID()))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Check panicked; its findings are left empty", zap.Any("panic", r))
			frag = Fragment{}
		}
	}()

	frag = chk.Evaluate(ctx, Env{Facts: s.facts, Logger: logger})
	if frag == nil {
		frag = Fragment{}
	}
	return frag
}

func (s *Scanner) merge(values map[string]string, chk Check, frag Fragment) {
	declared := make(map[string]bool, len(chk.Keys()))
	for _, k := range chk.Keys() {
		declared[k] = true
		values[k] = frag[k]
	}
	for k := range frag {
		if !declared[k] {
			s.logger.Warn("Dropping undeclared report key",
				zap.String("check", chk.ID()), zap.String("key", k))
		}
	}
}
