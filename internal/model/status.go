package model

// AccountStatus is the lifecycle state of a user account as stored in
// users.status.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "pending_verification"
	StatusActive              AccountStatus = "active"
	StatusLocked              AccountStatus = "locked"
	StatusSuspended           AccountStatus = "suspended"
	StatusDeactivated         AccountStatus = "deactivated"
)

// ParseAccountStatus converts a stored status code into an AccountStatus.
func ParseAccountStatus(code string) (AccountStatus, error) {
	switch s := AccountStatus(code); s {
	case StatusPendingVerification, StatusActive, StatusLocked, StatusSuspended, StatusDeactivated:
		return s, nil
	}
	return "", preconditionf("unknown account status %q", code)
}

// CanAuthenticate reports whether a password check may succeed in this state.
func (s AccountStatus) CanAuthenticate() bool { return s == StatusActive }

func (s AccountStatus) String() string { return string(s) }
