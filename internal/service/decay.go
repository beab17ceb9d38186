package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mnemoslab/mnemo/internal/domain"
)

const (
	// DefaultDecayRate is the per-day multiplier applied to importance.
	DefaultDecayRate = 0.95
	// MinImportanceFloor is the value importance never decays below.
	MinImportanceFloor = 0.1
	// DefaultDecayMinAgeDays exempts fresh memories from decay.
	DefaultDecayMinAgeDays = 7

	// ArchiveImportanceThreshold and friends gate the archival pass: a memory
	// is archived only when importance, access count, and age all qualify.
	ArchiveImportanceThreshold = 0.2
	ArchiveMaxAccessCount      = 3
	ArchiveMinAgeDays          = 90

	// AccessBoostFactor multiplies importance when a memory is recalled.
	AccessBoostFactor = 1.1

	// decayWriteEpsilon suppresses writes for negligible importance changes.
	decayWriteEpsilon = 0.001

	// DecayPassInterval is how often the recurring maintenance pass runs.
	DecayPassInterval = 6 * time.Hour

	// decayWriteRate caps store writes per second during a pass so
	// maintenance does not starve foreground traffic.
	decayWriteRate = 50
)

// DecayPassResult accumulates counts across one maintenance pass.
type DecayPassResult struct {
	WorkspacesVisited int `json:"workspaces_visited"`
	MemoriesDecayed   int `json:"memories_decayed"`
	MemoriesArchived  int `json:"memories_archived"`
}

// DecayService lowers importance of aging memories, archives the moribund
// ones, and applies the recall access boost.
type DecayService struct {
	memoryStore domain.MemoryStore
	logger      *zap.Logger

	decayRate  float64
	minAgeDays int
	limiter    *rate.Limiter
}

func NewDecayService(ms domain.MemoryStore, logger *zap.Logger) *DecayService {
	return &DecayService{
		memoryStore: ms,
		logger:      logger,
		decayRate:   DefaultDecayRate,
		minAgeDays:  DefaultDecayMinAgeDays,
		limiter:     rate.NewLimiter(rate.Limit(decayWriteRate), decayWriteRate),
	}
}

func (s *DecayService) SetDecayRate(r float64) {
	s.decayRate = r
}

// DecayWorkspace applies the decay formula to every eligible memory in one
// workspace and archives qualifying candidates. Pinned memories are excluded
// at the query level.
func (s *DecayService) DecayWorkspace(ctx context.Context, workspaceID string) (decayed, archived int, err error) {
	memories, err := s.memoryStore.GetForDecay(ctx, workspaceID, s.minAgeDays, true)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now().UTC()
	for _, m := range memories {
		newImportance := decayedImportance(m.Importance, lastAccessTime(m), now, s.decayRate)
		if math.Abs(newImportance-m.Importance) <= decayWriteEpsilon {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return decayed, archived, err
		}
		if _, err := s.memoryStore.Update(ctx, workspaceID, m.ID, domain.MemoryUpdate{Importance: &newImportance}); err != nil {
			s.logger.Warn("decay update failed",
				zap.String("memory_id", m.ID),
				zap.Error(err))
			continue
		}
		decayed++
	}

	candidates, err := s.memoryStore.GetArchivalCandidates(ctx, workspaceID, ArchiveImportanceThreshold, ArchiveMaxAccessCount, ArchiveMinAgeDays)
	if err != nil {
		return decayed, 0, err
	}
	archivedStatus := domain.StatusArchived
	for _, m := range candidates {
		if err := s.limiter.Wait(ctx); err != nil {
			return decayed, archived, err
		}
		if _, err := s.memoryStore.Update(ctx, workspaceID, m.ID, domain.MemoryUpdate{Status: &archivedStatus}); err != nil {
			s.logger.Warn("archival update failed",
				zap.String("memory_id", m.ID),
				zap.Error(err))
			continue
		}
		archived++
	}
	return decayed, archived, nil
}

// RunPass iterates all workspaces. It is the body of the recurring
// maintenance task.
func (s *DecayService) RunPass(ctx context.Context) (*DecayPassResult, error) {
	workspaceIDs, err := s.memoryStore.ListWorkspaceIDs(ctx)
	if err != nil {
		return nil, err
	}

	result := &DecayPassResult{}
	for _, wsID := range workspaceIDs {
		decayed, archived, err := s.DecayWorkspace(ctx, wsID)
		if err != nil {
			s.logger.Warn("decay pass failed for workspace",
				zap.String("workspace_id", wsID),
				zap.Error(err))
			continue
		}
		result.WorkspacesVisited++
		result.MemoriesDecayed += decayed
		result.MemoriesArchived += archived
	}
	s.logger.Info("decay pass complete",
		zap.Int("workspaces", result.WorkspacesVisited),
		zap.Int("decayed", result.MemoriesDecayed),
		zap.Int("archived", result.MemoriesArchived))
	return result, nil
}

// ApplyAccessBoost records the recall hit on the access counters and bumps
// importance. Pinned memories keep their importance but are still counted.
func (s *DecayService) ApplyAccessBoost(ctx context.Context, m *domain.Memory) error {
	upd := domain.MemoryUpdate{TouchAccess: true}
	if !m.Pinned {
		boosted := math.Min(1.0, m.Importance*AccessBoostFactor)
		upd.Importance = &boosted
	}
	_, err := s.memoryStore.Update(ctx, m.WorkspaceID, m.ID, upd)
	return err
}

// lastAccessTime falls back to creation time for memories that have never
// been recalled.
func lastAccessTime(m domain.Memory) time.Time {
	if m.LastAccessedAt != nil {
		return *m.LastAccessedAt
	}
	return m.CreatedAt
}

// decayedImportance applies importance x rate^days, floored, where days is
// the whole days since last access clamped at zero.
func decayedImportance(importance float64, lastAccessed, now time.Time, decayRate float64) float64 {
	days := now.Sub(lastAccessed).Hours() / 24
	if days < 0 {
		days = 0
	}
	decayed := importance * math.Pow(decayRate, math.Floor(days))
	return math.Max(MinImportanceFloor, decayed)
}
