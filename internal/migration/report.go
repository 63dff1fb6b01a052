package migration

import "time"

// UserError records a per-user failure. One user's failure never aborts the
// batch; it lands here instead.
type UserError struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Report summarizes a migrate or rollback run.
type Report struct {
	Mode       string      `json:"mode"`
	DryRun     bool        `json:"dry_run"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Processed  int         `json:"processed"`
	Created    int         `json:"created"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	TotalCents int64       `json:"total_cents"`
	Errors     []UserError `json:"errors,omitempty"`

	// Rollback-only counters.
	WalletsRemoved      int64 `json:"wallets_removed,omitempty"`
	TransactionsRemoved int64 `json:"transactions_removed,omitempty"`
}

// Mismatch records a balance disagreement between the original wallet and
// its legacy snapshot.
type Mismatch struct {
	UserID        string `json:"user_id"`
	OriginalCents int64  `json:"original_cents"`
	LegacyCents   int64  `json:"legacy_cents"`
}

// ValidationReport summarizes a validate run.
type ValidationReport struct {
	StartedAt          time.Time   `json:"started_at"`
	FinishedAt         time.Time   `json:"finished_at"`
	OriginalTotalCents int64       `json:"original_total_cents"`
	LegacyTotalCents   int64       `json:"legacy_total_cents"`
	DifferenceCents    int64       `json:"difference_cents"`
	WithinTolerance    bool        `json:"within_tolerance"`
	Mismatches         []Mismatch  `json:"mismatches,omitempty"`
	OrphanedUsers      []string    `json:"orphaned_users,omitempty"`
	UnmigratedPositive []string    `json:"unmigrated_positive,omitempty"`
	FixedUsers         []string    `json:"fixed_users,omitempty"`
	Errors             []UserError `json:"errors,omitempty"`
}

// IssueCount returns the number of findings a validate run surfaced.
func (r ValidationReport) IssueCount() int {
	n := len(r.Mismatches) + len(r.OrphanedUsers) + len(r.UnmigratedPositive)
	if !r.WithinTolerance {
		n++
	}
	return n
}
