package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"macropulse/internal/config"
	"macropulse/internal/dedup"
	"macropulse/internal/domain"
	"macropulse/internal/schedule"
	"macropulse/internal/statestore"
)

// CycleService runs one publication cycle: resolve slot matches, filter
// against the recorded history, publish per language in priority order,
// then persist the updated history in a single merge.
type CycleService struct {
	provider   SnapshotProvider
	renderer   Renderer
	images     ImageRenderer
	transports []Transport
	store      StateStore
	events     EventPublisher
	matcher    *schedule.Matcher
	filter     *dedup.Filter
	logger     *slog.Logger
	sched      config.SchedulerConfig
	publish    config.PublishConfig
	protected  []string
	now        func() time.Time
}

func NewCycleService(
	provider SnapshotProvider,
	renderer Renderer,
	images ImageRenderer,
	transports []Transport,
	store StateStore,
	events EventPublisher,
	matcher *schedule.Matcher,
	filter *dedup.Filter,
	logger *slog.Logger,
	schedCfg config.SchedulerConfig,
	publishCfg config.PublishConfig,
	protectedKeys []string,
) *CycleService {
	return &CycleService{
		provider:   provider,
		renderer:   renderer,
		images:     images,
		transports: transports,
		store:      store,
		events:     events,
		matcher:    matcher,
		filter:     filter,
		logger:     logger.With("component", "cycle"),
		sched:      schedCfg,
		publish:    publishCfg,
		protected:  protectedKeys,
		now:        time.Now,
	}
}

// Run executes one cycle. In force mode the schedule and both dedup layers
// are bypassed and publication is restricted to the priority languages.
// Only a failed history persist returns an error; collaborator failures
// degrade to per-identifier FAILED outcomes.
func (s *CycleService) Run(ctx context.Context, force bool) (*domain.CycleReport, error) {
	startedAt := s.now()
	report := domain.NewCycleReport(startedAt, force)

	var matches []domain.SlotMatch
	if force {
		matches = schedule.ForcedMatches(s.publish.PriorityLanguages)
	} else {
		matches = s.matcher.FindMatches(startedAt, s.sched.Lookback)
	}

	if len(matches) == 0 {
		report.Status = domain.CycleStandby
		s.logger.Info("no slots in window, standing by", "lookback", s.sched.Lookback)
		return report, nil
	}

	state, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	history := statestore.History(state)
	hashes := statestore.ContentHashes(state)

	valid := matches
	if !force {
		var cooled []domain.SlotMatch
		valid, cooled = s.filter.Apply(matches, history, startedAt)
		for _, m := range cooled {
			report.Record(m.Language, domain.OutcomeSkipped, "published within cooldown")
		}
	}

	if len(valid) == 0 {
		// Everything already handled by an earlier tick; no state churn.
		report.Status = domain.CycleAllProcessed
		report.Duration = s.now().Sub(startedAt)
		s.logger.Info("all matches already processed", "skipped", report.Skipped)
		return report, nil
	}

	s.orderByPriority(valid)

	snapshot, err := s.provider.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	sentHistory := make(map[string]time.Time)
	sentHashes := make(map[string]string)
	parents := make(map[string]string)

	for _, match := range valid {
		s.publishOne(ctx, report, snapshot, match, hashes, sentHistory, sentHashes, parents, startedAt)
	}

	report.Status = domain.CycleCompleted
	report.Duration = s.now().Sub(startedAt)

	if len(sentHistory) > 0 {
		if err := s.persist(ctx, history, hashes, sentHistory, sentHashes); err != nil {
			// Posts are already out. At-least-once delivery is the
			// accepted trade-off: losing the cooldown record may
			// cause a re-send on the next tick.
			return report, err
		}
	}

	s.emitReport(ctx, report)

	s.logger.Info("cycle completed",
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"forced", force,
		"duration", report.Duration,
	)

	return report, nil
}

func (s *CycleService) publishOne(
	ctx context.Context,
	report *domain.CycleReport,
	snapshot *domain.Snapshot,
	match domain.SlotMatch,
	prevHashes map[string]string,
	sentHistory map[string]time.Time,
	sentHashes map[string]string,
	parents map[string]string,
	now time.Time,
) {
	lang := match.Language

	text, err := s.renderer.Render(ctx, snapshot, lang)
	if err != nil {
		report.Record(lang, domain.OutcomeFailed, fmt.Sprintf("render: %v", err))
		return
	}
	if text == "" {
		report.Record(lang, domain.OutcomeFailed, "render: empty text")
		return
	}

	hash := dedup.ContentHash(text)
	if !match.Forced && prevHashes[lang] == hash {
		s.logger.Info("content unchanged since last publish", "language", lang)
		report.Record(lang, domain.OutcomeSkipped, "content unchanged")
		return
	}

	imagePath := s.renderImage(ctx, snapshot, lang)
	if imagePath != "" {
		defer func() {
			if err := os.Remove(imagePath); err != nil {
				s.logger.Warn("failed to remove artifact", "path", imagePath, "error", err)
			}
		}()
	}

	sent := false
	for _, transport := range s.transports {
		id := lang + "/" + transport.Name()

		ref, err := transport.Send(ctx, text, imagePath, parents[transport.Name()])
		if err != nil {
			report.Record(id, domain.OutcomeFailed, err.Error())
			continue
		}
		if ref == "" {
			report.Record(id, domain.OutcomeFailed, "transport returned no post reference")
			continue
		}

		// The newest successful post becomes the thread parent for the
		// next language on this platform.
		parents[transport.Name()] = ref
		report.Record(id, domain.OutcomeSuccess, "")
		sent = true

		s.logger.Info("published",
			"language", lang,
			"phase", match.Phase,
			"transport", transport.Name(),
			"ref", ref,
		)
	}

	if sent {
		sentHistory[lang] = now
		sentHashes[lang] = hash
	}
}

// renderImage is best-effort: a failed artifact never blocks the text send.
func (s *CycleService) renderImage(ctx context.Context, snapshot *domain.Snapshot, lang string) string {
	if s.images == nil {
		return ""
	}
	path, err := s.images.RenderImage(ctx, snapshot, lang)
	if err != nil {
		s.logger.Warn("image render failed, sending text only", "language", lang, "error", err)
		return ""
	}
	return path
}

// persist folds this cycle's sends into the recorded namespaces and writes
// them back in one merge, leaving collaborator-owned keys untouched.
func (s *CycleService) persist(
	ctx context.Context,
	history map[string]time.Time,
	hashes map[string]string,
	sentHistory map[string]time.Time,
	sentHashes map[string]string,
) error {
	for lang, t := range sentHistory {
		history[lang] = t
	}
	for lang, h := range sentHashes {
		hashes[lang] = h
	}

	updates := map[string]any{
		statestore.KeyPublicationHistory: statestore.EncodeHistory(history),
		statestore.KeyContentHashes:      statestore.EncodeHashes(hashes),
	}

	if err := s.store.Merge(ctx, updates, s.protected); err != nil {
		return fmt.Errorf("persist publication history: %w", err)
	}
	return nil
}

func (s *CycleService) emitReport(ctx context.Context, report *domain.CycleReport) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishReport(ctx, report); err != nil {
		s.logger.Warn("failed to publish cycle report", "error", err)
	}
}

// orderByPriority sorts matches so the configured priority languages lead
// (in list order) and the rest follow alphabetically. The first success
// roots the reply chain, so the most-trafficked language must go first.
func (s *CycleService) orderByPriority(matches []domain.SlotMatch) {
	rank := make(map[string]int, len(s.publish.PriorityLanguages))
	for i, lang := range s.publish.PriorityLanguages {
		rank[lang] = i
	}

	sort.SliceStable(matches, func(i, j int) bool {
		ri, iPrio := rank[matches[i].Language]
		rj, jPrio := rank[matches[j].Language]
		switch {
		case iPrio && jPrio:
			return ri < rj
		case iPrio:
			return true
		case jPrio:
			return false
		default:
			return matches[i].Language < matches[j].Language
		}
	})
}
