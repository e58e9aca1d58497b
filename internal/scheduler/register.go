package scheduler

import "github.com/maproulette/backend/internal/config"

// RegisterAll wires every §4.7 job onto s using cfg's cron specs. Returns
// the first registration error (an invalid cron spec in config), if any.
func RegisterAll(s *Scheduler, cfg config.Scheduler, jobs *Jobs) error {
	registrations := []struct {
		name string
		spec string
		job  Job
	}{
		{"expireLocks", cfg.LockExpirySweep, jobs.ExpireLocks},
		{"runChallengeSchedules", cfg.ChallengeSchedules, jobs.RunChallengeSchedules},
		{"updateLocations", cfg.LocationUpdate, jobs.UpdateLocations},
		{"sendImmediateEmailDigest", cfg.ImmediateDigest, jobs.SendImmediateEmailDigest},
		{"sendDailyEmailDigest", cfg.DailyDigest, jobs.SendDailyEmailDigest},
		{"sweepExpiredCache", cfg.CacheSweep, jobs.SweepExpiredCache},
	}

	for _, r := range registrations {
		if err := s.Register(r.name, r.spec, r.job); err != nil {
			return err
		}
	}
	return nil
}
