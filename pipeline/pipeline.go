// Package pipeline runs load, transform, aggregate and export for one
// campaign extract.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/campaign-insights/aggregate"
	"github.com/aluiziolira/campaign-insights/config"
	"github.com/aluiziolira/campaign-insights/loader"
	"github.com/aluiziolira/campaign-insights/models"
	"github.com/aluiziolira/campaign-insights/parser"
	"github.com/aluiziolira/campaign-insights/source"
)

// OutputWriter defines the interface for snapshot output. Written rows only
// become visible on Close; Abort throws them away and keeps whatever snapshot
// a previous run left.
type OutputWriter interface {
	Write(records []models.CleanedRecord) error
	Close() error
	Abort() error
	Validate() error
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithMetrics records run metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline coordinates loading, cleaning, aggregation and output writing.
type Pipeline struct {
	cfg         *config.Config
	src         source.Source
	writer      OutputWriter
	transformer *parser.Transformer
	metrics     *Metrics
	logger      *slog.Logger
}

// New builds a pipeline reading from src. writer may be nil, in which case no
// snapshot is written. Run closes the writer on success and aborts it on
// failure.
func New(cfg *config.Config, src source.Source, writer OutputWriter, opts ...Option) (*Pipeline, error) {
	if src == nil {
		return nil, errors.New("pipeline: source is required")
	}
	transformer, err := parser.NewTransformer(cfg.DateLayout, cfg.DateCacheSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:         cfg,
		src:         src,
		writer:      writer,
		transformer: transformer,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes one full pass. Any error aborts the run and no result is
// returned. Outputs are staged once every row has been cleaned and only
// published after both the snapshot and the summaries were written, so a
// failed run leaves the previous outputs untouched.
func (p *Pipeline) Run(ctx context.Context) (result *models.Result, err error) {
	runID := uuid.NewString()
	logger := p.logger.With(slog.String("run_id", runID))
	start := time.Now()

	defer func() {
		if err != nil && p.writer != nil {
			if abortErr := p.writer.Abort(); abortErr != nil {
				logger.Warn("discarding snapshot failed", slog.Any("error", abortErr))
			}
		}
		if err != nil {
			p.metrics.IncRun("failed")
			logger.Error("pipeline run failed",
				slog.String("error_type", ErrorType(err)),
				slog.Any("error", err),
			)
			return
		}
		p.metrics.IncRun("succeeded")
	}()

	logger.Info("pipeline run started", slog.String("source", p.src.String()))

	raw, err := p.load(ctx, logger)
	if err != nil {
		return nil, err
	}

	records, err := p.transform(ctx, logger, raw)
	if err != nil {
		return nil, err
	}

	stageStart := time.Now()
	summaries := aggregate.All(records)
	p.metrics.ObserveStage("aggregate", time.Since(stageStart))
	for _, table := range summaries {
		p.metrics.SetSummaryRows(table.Name, len(table.Rows))
		logger.Debug("summary computed", slog.String("summary", table.Name), slog.Int("groups", len(table.Rows)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshotPath, err := p.writeSnapshot(logger, records)
	if err != nil {
		return nil, err
	}

	var staged *stagedFile
	if p.cfg.SummaryFile != "" {
		stageStart = time.Now()
		staged, err = stageSummaries(p.cfg.SummaryFile, summaries)
		if err != nil {
			return nil, err
		}
		p.metrics.ObserveStage("summaries", time.Since(stageStart))
	}

	if err := p.publish(staged); err != nil {
		return nil, err
	}
	if staged != nil {
		logger.Info("summaries written", slog.String("path", p.cfg.SummaryFile))
	}

	result = &models.Result{
		RunID:        runID,
		Source:       p.src.String(),
		Records:      records,
		Summaries:    summaries,
		StartTime:    start,
		EndTime:      time.Now(),
		RowCount:     len(records),
		SnapshotPath: snapshotPath,
	}
	logger.Info("pipeline run finished",
		slog.Int("rows", result.RowCount),
		slog.Int("summaries", len(summaries)),
		slog.Duration("duration", result.EndTime.Sub(start)),
	)
	return result, nil
}

// publish commits the snapshot, then the staged summaries.
func (p *Pipeline) publish(summaries *stagedFile) error {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			if summaries != nil {
				summaries.discard()
			}
			return &WriteError{Path: p.cfg.SnapshotFile, Err: err}
		}
	}
	if summaries == nil {
		return nil
	}
	if err := summaries.commit(); err != nil {
		return &WriteError{Path: p.cfg.SummaryFile, Err: err}
	}
	return nil
}

func (p *Pipeline) load(ctx context.Context, logger *slog.Logger) ([]models.CampaignRecord, error) {
	stageStart := time.Now()

	rc, err := p.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := loader.Read(rc)
	if err != nil {
		return nil, err
	}

	p.metrics.AddLoaded(len(raw))
	p.metrics.ObserveStage("load", time.Since(stageStart))
	logger.Info("source loaded", slog.Int("rows", len(raw)))
	return raw, nil
}

func (p *Pipeline) transform(ctx context.Context, logger *slog.Logger, raw []models.CampaignRecord) ([]models.CleanedRecord, error) {
	stageStart := time.Now()
	records := make([]models.CleanedRecord, 0, len(raw))
	var collected *RowErrors

	for _, rec := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cleaned, err := p.transformer.Transform(rec)
		if err != nil {
			rowErr := &RowError{Line: rec.Line, Err: err}
			p.metrics.IncRowError(ErrorType(err))
			logger.Debug("malformed row", slog.Int("line", rec.Line), slog.Any("error", err))

			if !p.cfg.CollectRowErrors {
				return nil, rowErr
			}
			if collected == nil {
				collected = &RowErrors{}
			}
			collected.Total++
			if len(collected.Errors) < p.cfg.MaxRowErrors {
				collected.Errors = append(collected.Errors, rowErr)
			}
			continue
		}

		p.metrics.IncTransformed()
		records = append(records, cleaned)
	}

	if collected != nil {
		return nil, collected
	}

	p.metrics.ObserveStage("transform", time.Since(stageStart))
	logger.Info("rows cleaned", slog.Int("rows", len(records)))
	return records, nil
}

func (p *Pipeline) writeSnapshot(logger *slog.Logger, records []models.CleanedRecord) (string, error) {
	if p.writer == nil {
		return "", nil
	}
	stageStart := time.Now()

	if err := p.writer.Write(records); err != nil {
		return "", &WriteError{Path: p.cfg.SnapshotFile, Err: err}
	}
	if len(records) > 0 {
		if err := p.writer.Validate(); err != nil {
			return "", &WriteError{Path: p.cfg.SnapshotFile, Err: fmt.Errorf("validate snapshot: %w", err)}
		}
	}

	p.metrics.ObserveStage("snapshot", time.Since(stageStart))
	logger.Info("snapshot written",
		slog.String("path", p.cfg.SnapshotFile),
		slog.String("format", p.cfg.SnapshotFormat),
		slog.Int("rows", len(records)),
	)
	return p.cfg.SnapshotFile, nil
}
