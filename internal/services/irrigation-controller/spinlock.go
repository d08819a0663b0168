package irrigation_controller

import "github.com/LeonardoBeccarini/garden_controller/internal/model/entities"

// SpinLock is the single exclusion token shared by all solenoid drives: at
// most one line may spin at any instant. Fairness is first-come.
type SpinLock struct {
	owner entities.Line
	held  bool
}

// TryAcquire succeeds when the lock is free or already held by owner.
func (s *SpinLock) TryAcquire(owner entities.Line) bool {
	if !s.held {
		s.owner, s.held = owner, true
		return true
	}
	return s.owner == owner
}

// Release frees the lock only if owner holds it.
func (s *SpinLock) Release(owner entities.Line) {
	if s.held && s.owner == owner {
		s.held = false
	}
}

func (s *SpinLock) Owner() (entities.Line, bool) { return s.owner, s.held }
