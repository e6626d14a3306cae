package lifecycle

import (
	"context"
	"log"
	"time"

	"github.com/yogami/AIVoiceTranslator-sub012/pkg/interfaces"
	"github.com/yogami/AIVoiceTranslator-sub012/pkg/types"
)

// SweepReport counts what one inactivity pass did. Both counts are always
// concrete, zero included.
type SweepReport struct {
	Ended      int `json:"ended"`
	Classified int `json:"classified"`
}

// Sweeper ends and classifies active sessions whose last activity is older
// than a threshold. Storage failures for one session are logged and never
// stop the pass for the rest.
type Sweeper struct {
	store interfaces.SessionStore
	now   func() time.Time
}

// NewSweeper creates a sweeper over the storage collaborator.
func NewSweeper(store interfaces.SessionStore) *Sweeper {
	return &Sweeper{store: store, now: time.Now}
}

// Start runs ProcessInactiveSessions on an interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report, err := s.ProcessInactiveSessions(ctx, threshold)
			if err != nil {
				log.Printf("Inactivity sweep failed: %v", err)
				continue
			}
			if report.Ended > 0 {
				log.Printf("Inactivity sweep: ended=%d classified=%d", report.Ended, report.Classified)
			}
		case <-ctx.Done():
			log.Println("Inactivity sweeper stopped")
			return
		}
	}
}

// ProcessInactiveSessions scans active sessions and ends every one whose
// last activity is older than threshold, classifying it as it goes. A
// session with no students is always no_students, without computing full
// metrics. Each candidate is re-read once before finalizing, so a session
// that saw traffic mid-sweep survives; this is best-effort, not
// transactional.
func (s *Sweeper) ProcessInactiveSessions(ctx context.Context, threshold time.Duration) (SweepReport, error) {
	var report SweepReport

	sessions, err := s.store.GetAllActiveSessions(ctx)
	if err != nil {
		return report, err
	}

	now := s.now()
	for _, session := range sessions {
		if now.Sub(session.LastActivityAt) < threshold {
			continue
		}

		// Live traffic may have touched the session since the scan.
		current, err := s.store.GetSessionByID(ctx, session.ID)
		if err != nil {
			log.Printf("Sweep re-read failed: session=%s err=%v", session.ID, err)
			continue
		}
		if !current.IsActive || now.Sub(current.LastActivityAt) < threshold {
			continue
		}

		classification := s.classifySession(ctx, current, now)
		if err := s.endSession(ctx, current.ID, now, classification); err != nil {
			log.Printf("Failed to end inactive session: session=%s err=%v", current.ID, err)
			continue
		}
		report.Ended++
		report.Classified++
		log.Printf("Ended inactive session: session=%s tier=%s reason=%s",
			current.ID, classification.Tier, classification.Reason)
	}

	return report, nil
}

// classifySession applies the rule 1-3 shortcuts before paying for a
// transcript count.
func (s *Sweeper) classifySession(ctx context.Context, session *types.Session, now time.Time) Classification {
	metrics := Metrics{
		StudentsCount:    session.StudentsCount,
		TranslationCount: session.TotalTranslations,
		Duration:         now.Sub(session.StartTime),
	}

	if metrics.StudentsCount == 0 {
		return Classification{Tier: types.TierDead, Reason: ReasonNoStudents, Metrics: metrics}
	}

	transcripts, err := s.store.GetTranscriptCountBySession(ctx, session.ID)
	if err != nil {
		log.Printf("Transcript count unavailable, classifying without it: session=%s err=%v", session.ID, err)
	}
	metrics.TranscriptCount = transcripts

	return Classify(metrics, session.StartTime)
}

func (s *Sweeper) endSession(ctx context.Context, sessionID string, endTime time.Time, c Classification) error {
	inactive := false
	reason := c.Reason
	tier := c.Tier
	return s.store.UpdateSession(ctx, sessionID, interfaces.SessionUpdate{
		IsActive:      &inactive,
		EndTime:       &endTime,
		Quality:       &tier,
		QualityReason: &reason,
	})
}
