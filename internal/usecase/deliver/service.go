// Package deliver implements the outbound half of the news cycle: select
// unsent records in tier order, render them and push them through the rate
// governor, marking each record sent only after confirmed transmission.
package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketpulse/internal/domain/entity"
	"marketpulse/internal/infra/notifier"
	"marketpulse/internal/observability/metrics"
	"marketpulse/internal/report"
	"marketpulse/internal/repository"
)

// Config controls the per-cycle selection limits and the urgent cooldown.
type Config struct {
	// PriorityLimit caps the priority pass (urgent tiers)
	PriorityLimit int

	// DigestLimit caps the digest pass (HIGH, MEDIUM)
	DigestLimit int

	// UrgentCooldown is the minimum gap between two urgent-person alerts
	UrgentCooldown time.Duration
}

// DefaultConfig returns the production delivery policy.
func DefaultConfig() Config {
	return Config{
		PriorityLimit:  3,
		DigestLimit:    3,
		UrgentCooldown: time.Hour,
	}
}

// Service runs delivery cycles against the store and the governor.
// The clock is injected so cooldown windows are testable.
type Service struct {
	Repo   repository.NewsRepository
	Sender notifier.Messenger
	Config Config
	Now    func() time.Time
}

// NewService creates a delivery Service using the wall clock.
func NewService(repo repository.NewsRepository, sender notifier.Messenger, cfg Config) Service {
	return Service{
		Repo:   repo,
		Sender: sender,
		Config: cfg,
		Now:    time.Now,
	}
}

// Report contains statistics about one delivery cycle.
type Report struct {
	PrioritySent    int
	DigestSent      int
	Failed          int
	CooldownSkipped int
	Duration        time.Duration
}

// RunDeliveryCycle performs the priority pass followed by the digest pass.
// A failed send leaves its record unsent and the cycle continues; only a
// store failure aborts.
func (s *Service) RunDeliveryCycle(ctx context.Context) (*Report, error) {
	start := s.Now()
	rep := &Report{}

	if err := s.priorityPass(ctx, rep); err != nil {
		return rep, err
	}
	if err := s.digestPass(ctx, rep); err != nil {
		return rep, err
	}

	rep.Duration = s.Now().Sub(start)
	slog.Info("delivery cycle completed",
		slog.Int("priority_sent", rep.PrioritySent),
		slog.Int("digest_sent", rep.DigestSent),
		slog.Int("failed", rep.Failed),
		slog.Int("cooldown_skipped", rep.CooldownSkipped),
		slog.Duration("duration", rep.Duration),
	)
	return rep, nil
}

// priorityPass sends the highest-tier unsent records, one message each.
func (s *Service) priorityPass(ctx context.Context, rep *Report) error {
	records, err := s.Repo.SelectUnsent(ctx, entity.PriorityTiers, s.Config.PriorityLimit)
	if err != nil {
		return fmt.Errorf("select priority records: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	urgentBlocked, err := s.urgentCooldownActive(ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		if record.Importance == entity.TierUrgentPerson && urgentBlocked {
			rep.CooldownSkipped++
			metrics.RecordUrgentCooldownSkip()
			slog.Info("urgent alert held back by cooldown",
				slog.Int64("id", record.ID),
				slog.Duration("window", s.Config.UrgentCooldown))
			continue
		}

		msg := report.Alert(record, s.Now())
		if s.sendAndMark(ctx, record, msg, "alert", rep) {
			rep.PrioritySent++
			// One urgent alert per window: a delivery inside this
			// cycle blocks the remaining urgent records too.
			if record.Importance == entity.TierUrgentPerson && s.Config.UrgentCooldown > 0 {
				urgentBlocked = true
			}
		}
	}
	return nil
}

// digestPass sends the lower-tier records as individually numbered digest
// entries.
func (s *Service) digestPass(ctx context.Context, rep *Report) error {
	records, err := s.Repo.SelectUnsent(ctx, entity.DigestTiers, s.Config.DigestLimit)
	if err != nil {
		return fmt.Errorf("select digest records: %w", err)
	}

	for i, record := range records {
		msg := report.DigestEntry(record, i+1, s.Now())
		if s.sendAndMark(ctx, record, msg, "digest", rep) {
			rep.DigestSent++
		}
	}
	return nil
}

// sendAndMark pushes one message through the governor and flips the record
// to sent on success. Send failures are counted and skipped; the record is
// picked up again next cycle.
func (s *Service) sendAndMark(ctx context.Context, record *entity.NewsRecord, msg, kind string, rep *Report) bool {
	if err := s.Sender.Send(ctx, msg); err != nil {
		rep.Failed++
		metrics.RecordMessageSendError(kind)
		slog.Warn("delivery failed, record stays unsent",
			slog.Int64("id", record.ID),
			slog.String("tier", string(record.Importance)),
			slog.Any("error", err))
		return false
	}

	metrics.RecordMessageSent(kind)

	if err := s.Repo.MarkSent(ctx, record.ID); err != nil {
		// The message went out but the flag did not stick; the record
		// may be re-delivered next cycle.
		slog.Error("mark sent failed after successful delivery",
			slog.Int64("id", record.ID),
			slog.Any("error", err))
		return true
	}
	return true
}

// urgentCooldownActive reports whether an urgent-person alert went out
// within the cooldown window.
func (s *Service) urgentCooldownActive(ctx context.Context) (bool, error) {
	if s.Config.UrgentCooldown <= 0 {
		return false, nil
	}
	last, err := s.Repo.LastSentAt(ctx, entity.TierUrgentPerson)
	if err != nil {
		return false, fmt.Errorf("last urgent sent-at: %w", err)
	}
	if last.IsZero() {
		return false, nil
	}
	return s.Now().Sub(last) < s.Config.UrgentCooldown, nil
}
