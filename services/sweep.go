package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"engage-kb-platform/internal/logger"
	"engage-kb-platform/internal/store"
)

// SweepService runs periodic reconciliation over the knowledge store:
// documents stuck in processing are marked failed, and per-KB document
// counts are recomputed from the documents collection.
type SweepService struct {
	store     store.Store
	scheduler *gocron.Scheduler
	interval  time.Duration
	stuckTTL  time.Duration
}

func NewSweepService(st store.Store, interval, stuckTTL time.Duration) *SweepService {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &SweepService{
		store:     st,
		scheduler: s,
		interval:  interval,
		stuckTTL:  stuckTTL,
	}
}

// Start schedules the sweep and runs the scheduler in the background.
func (s *SweepService) Start() error {
	_, err := s.scheduler.Every(s.interval).Tag("kb-sweep").Do(func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Info("Reconciliation sweep scheduled", "interval", s.interval.String())
	return nil
}

// Stop stops the scheduler.
func (s *SweepService) Stop() {
	s.scheduler.Stop()
}

// Sweep runs one reconciliation pass. Errors are logged, not returned;
// a failed pass is retried on the next tick.
func (s *SweepService) Sweep(ctx context.Context) {
	s.failStuckDocuments(ctx)
	s.reconcileDocumentCounts(ctx)
}

func (s *SweepService) failStuckDocuments(ctx context.Context) {
	stuck, err := s.store.ListStuckDocuments(ctx, time.Now().Add(-s.stuckTTL))
	if err != nil {
		logger.Error("Sweep failed to list stuck documents", "error", err)
		return
	}

	for _, doc := range stuck {
		matched, err := s.store.MarkDocumentFailed(ctx, doc.ID, doc.Revision, "processing timed out")
		if err != nil {
			logger.Error("Sweep failed to mark document failed",
				"document_id", doc.ID,
				"error", err,
			)
			continue
		}
		if matched {
			logger.Warn("Stuck document marked failed",
				"document_id", doc.ID,
				"kb_id", doc.KnowledgeBaseID,
				"updated_at", doc.UpdatedAt,
			)
		}
	}
}

func (s *SweepService) reconcileDocumentCounts(ctx context.Context) {
	kbs, err := s.store.ListAllKnowledgeBases(ctx)
	if err != nil {
		logger.Error("Sweep failed to list knowledge bases", "error", err)
		return
	}

	for _, kb := range kbs {
		count, err := s.store.CountDocuments(ctx, kb.ID)
		if err != nil {
			logger.Error("Sweep failed to count documents", "kb_id", kb.ID, "error", err)
			continue
		}

		if count == kb.DocumentCount {
			continue
		}

		if err := s.store.SetDocumentCount(ctx, kb.ID, count); err != nil {
			logger.Error("Sweep failed to update document count", "kb_id", kb.ID, "error", err)
			continue
		}

		logger.Info("Document count reconciled",
			"kb_id", kb.ID,
			"was", kb.DocumentCount,
			"now", count,
		)
	}
}
