package pipeline

import "time"

const (
	// TargetPeriod is the interval between cycles.
	TargetPeriod = 4 * time.Millisecond

	maxSleep     = 10 * time.Millisecond
	backlogLimit = 3 * time.Second
)

// scheduler turns measured cycle intervals into sleep requests. Overruns
// accumulate in backlog and are repaid by sleeping less on later cycles.
type scheduler struct {
	backlog time.Duration
}

// next records that the last cycle took elapsed and returns how long to
// sleep before the next one.
func (s *scheduler) next(elapsed time.Duration) time.Duration {
	s.backlog += elapsed - TargetPeriod

	// A debugger pause or suspend should not be chased for seconds.
	if s.backlog > backlogLimit || s.backlog < -backlogLimit {
		opsf("backlog interval overflow %d ms, resetting", s.backlog.Milliseconds())
		s.backlog = 0
	}

	sleep := TargetPeriod - s.backlog
	if sleep < 0 {
		sleep = 0
	}
	if sleep > maxSleep {
		sleep = maxSleep
	}
	return sleep.Truncate(time.Millisecond)
}
