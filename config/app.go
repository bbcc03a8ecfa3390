package config

import "time"

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Env         string `env:"APP_ENV" default:"dev"`

	// Sweep cadence for the three background jobs. One knob, the jobs
	// all run on the same interval in production.
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" default:"60s"`
}

// Borrow-flow windows. All fixed policy, not per-deploy tuning.
const (
	HoldExpireWindow  = 10 * time.Minute
	PickupWindowDays  = 2
	BorrowPeriodDays  = 10
	RenewExtendDays   = 10
	MaxRenewCount     = 1
	MaxItemsPerTicket = 5

	// MaxActiveTickets is enforced against the member's most recent
	// CheckRecentTickets rows only. Known approximation: a member with
	// more than CheckRecentTickets non-terminal tickets interleaved in
	// history can slip past the cap. Documented behavior, keep as is.
	MaxActiveTickets   = 3
	CheckRecentTickets = 5
)
