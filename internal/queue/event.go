// Package queue defines the IAM events exchanged over the message broker,
// the publisher that emits them and the audit consumer that records them.
package queue

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/booking-iam/internal/model"
)

// EventType names an IAM event on the wire.
type EventType string

const (
	EventUserLoggedIn  EventType = "iam.user_logged_in"
	EventLoginFailed   EventType = "iam.login_failed"
	EventAccountLocked EventType = "iam.account_locked"
)

// Lock reasons carried by AccountLocked events.
const (
	LockReasonConsecutiveFailures = "consecutive_failures"
	LockReasonAdminAction         = "admin_action"
)

// Event is the single JSON payload published to the iam.events queue.
// Personal data is masked before it is put on an Event: Email and IPAddress
// never hold the raw values.
type Event struct {
	ID          string     `json:"event_id"`
	Type        EventType  `json:"type"`
	OccurredAt  time.Time  `json:"occurred_at"`
	UserID      string     `json:"user_id,omitempty"`
	Email       string     `json:"email,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// UserLoggedIn is emitted after a successful login.
func UserLoggedIn(userID, clientIP, userAgent string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventUserLoggedIn,
		OccurredAt: at.UTC(),
		UserID:     userID,
		IPAddress:  MaskIP(clientIP),
		UserAgent:  userAgent,
	}
}

// LoginFailed is emitted for every rejected login, including unknown emails.
func LoginFailed(email string, reason model.FailureReason, clientIP string, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventLoginFailed,
		OccurredAt: at.UTC(),
		Email:      model.MaskEmail(model.NormalizeEmail(email)),
		IPAddress:  MaskIP(clientIP),
		Reason:     string(reason),
	}
}

// AccountLocked is emitted when a lock is applied. ok=false means the lock
// has no end time.
func AccountLocked(userID, reason string, until time.Time, ok bool, at time.Time) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       EventAccountLocked,
		OccurredAt: at.UTC(),
		UserID:     userID,
		Reason:     reason,
	}
	if ok {
		u := until.UTC()
		ev.LockedUntil = &u
	}
	return ev
}

// MaskIP keeps the network part of an address: "192.168.1.10" becomes
// "192.168.1.***" and IPv6 addresses keep their first four groups.
// Anything unparsable is replaced entirely.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "***"
	}
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.***", b[0], b[1], b[2])
	}
	groups := strings.SplitN(addr.StringExpanded(), ":", 5)
	return strings.Join(groups[:4], ":") + ":***"
}
