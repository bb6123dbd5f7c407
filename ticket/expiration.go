package ticket

import (
	"encoding/json"
	"fmt"
	"time"
)

// Policy decides whether a ticket is still valid and whether a successful
// validation must consume it. Policies are pure: they are evaluated on every
// touch of a ticket and never cached, because usage counters and timestamps
// mutate between evaluations.
type Policy interface {
	IsExpired(t *Ticket, now time.Time) bool
	ShouldConsume() bool
	policyType() string
}

// NeverExpires keeps a ticket valid forever. Test and dev only.
type NeverExpires struct{}

func (NeverExpires) IsExpired(*Ticket, time.Time) bool { return false }
func (NeverExpires) ShouldConsume() bool               { return false }
func (NeverExpires) policyType() string                { return "never" }

// TimeToLive expires a ticket after a fixed lifetime since creation, or
// after an idle window since last use. A zero MaxIdle disables the sliding
// window.
type TimeToLive struct {
	MaxLifetime time.Duration
	MaxIdle     time.Duration
}

func (p TimeToLive) IsExpired(t *Ticket, now time.Time) bool {
	if now.Sub(t.CreatedAt) >= p.MaxLifetime {
		return true
	}
	if p.MaxIdle > 0 && now.Sub(t.LastUsedAt) >= p.MaxIdle {
		return true
	}
	return false
}

func (TimeToLive) ShouldConsume() bool { return false }
func (TimeToLive) policyType() string  { return "ttl" }

// MultiUseOrTimeout expires a ticket once a use count is exhausted or a
// fixed timeout since creation elapses. With MaxUses of one this is the
// single-use service ticket policy, and validation consumes the ticket.
type MultiUseOrTimeout struct {
	MaxUses int
	Timeout time.Duration
}

func (p MultiUseOrTimeout) IsExpired(t *Ticket, now time.Time) bool {
	return t.UsageCount >= p.MaxUses || now.Sub(t.CreatedAt) >= p.Timeout
}

func (p MultiUseOrTimeout) ShouldConsume() bool { return p.MaxUses == 1 }
func (MultiUseOrTimeout) policyType() string    { return "multiUse" }

// Expiry wraps a Policy so that policy parameters survive the registry's
// JSON persistence. A nil policy behaves as NeverExpires.
type Expiry struct {
	Policy
}

func (e Expiry) IsExpired(t *Ticket, now time.Time) bool {
	if e.Policy == nil {
		return false
	}
	return e.Policy.IsExpired(t, now)
}

func (e Expiry) ShouldConsume() bool {
	if e.Policy == nil {
		return false
	}
	return e.Policy.ShouldConsume()
}

type expiryJSON struct {
	Type        string `json:"type"`
	MaxLifetime int64  `json:"maxLifetimeSeconds,omitempty"`
	MaxIdle     int64  `json:"maxIdleSeconds,omitempty"`
	MaxUses     int    `json:"maxUses,omitempty"`
	Timeout     int64  `json:"timeoutSeconds,omitempty"`
}

func (e Expiry) MarshalJSON() ([]byte, error) {
	j := expiryJSON{Type: "never"}
	switch p := e.Policy.(type) {
	case nil, NeverExpires:
	case TimeToLive:
		j.Type = p.policyType()
		j.MaxLifetime = int64(p.MaxLifetime / time.Second)
		j.MaxIdle = int64(p.MaxIdle / time.Second)
	case MultiUseOrTimeout:
		j.Type = p.policyType()
		j.MaxUses = p.MaxUses
		j.Timeout = int64(p.Timeout / time.Second)
	default:
		return nil, fmt.Errorf("unsupported expiration policy %T", e.Policy)
	}
	return json.Marshal(j)
}

func (e *Expiry) UnmarshalJSON(b []byte) error {
	var j expiryJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	switch j.Type {
	case "", "never":
		e.Policy = NeverExpires{}
	case "ttl":
		e.Policy = TimeToLive{
			MaxLifetime: time.Duration(j.MaxLifetime) * time.Second,
			MaxIdle:     time.Duration(j.MaxIdle) * time.Second,
		}
	case "multiUse":
		e.Policy = MultiUseOrTimeout{
			MaxUses: j.MaxUses,
			Timeout: time.Duration(j.Timeout) * time.Second,
		}
	default:
		return fmt.Errorf("unknown expiration policy type: %s", j.Type)
	}
	return nil
}
