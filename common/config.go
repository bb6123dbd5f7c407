package common

import (
	"errors"
	"fmt"
	"net/url"
)

type Config struct {
	// Service ID, used as the node identity in replication
	ServiceID string `json:"serviceID"`
	// HTTP API config
	HTTP HTTPConf `json:"http"`
	// Ticket registry config
	Registry RegConf `json:"registry"`
	// Ticket lifetime policies
	Tickets TicketConf `json:"tickets"`
	// Authentication pipeline config
	Auth AuthConf `json:"auth"`
}

// HTTP config
type HTTPConf struct {
	BindAddr string `json:"bindAddr"`
	BindPort uint16 `json:"bindPort"`
}

// Registry config
type RegConf struct {
	Backend BackendConf `json:"backend"`
	// SweepInterval is the period of the expired-ticket sweep, in seconds
	SweepInterval uint            `json:"sweepInterval"`
	Replication   ReplicationConf `json:"replication"`
}

// Registry backend config
type BackendConf struct {
	Type string `json:"type"`
	DSN  string `json:"dsn"`
}

// Replication config for the cross-node registry
type ReplicationConf struct {
	Enabled     bool   `json:"enabled"`
	BrokerURL   string `json:"brokerURL"`
	TopicPrefix string `json:"topicPrefix"`
	QoS         byte   `json:"qos"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

func (c ReplicationConf) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("Replication: broker URL (brokerURL) is not specified.")
	}
	_, err := url.Parse(c.BrokerURL)
	if err != nil {
		return errors.New("Replication: broker URL (brokerURL) is invalid: " + err.Error())
	}
	if c.TopicPrefix == "" {
		return errors.New("Replication: topic prefix (topicPrefix) is not specified.")
	}
	if c.QoS > 2 {
		return fmt.Errorf("Replication: QoS must be 0, 1, or 2, got %d", c.QoS)
	}
	return nil
}

// Ticket policy config. All intervals are in seconds; 0 disables the bound.
type TicketConf struct {
	TGT TGTPolicyConf `json:"ticketGrantingTicket"`
	ST  STPolicyConf  `json:"serviceTicket"`
}

// Ticket-granting ticket (and proxy-granting ticket) expiration bounds
type TGTPolicyConf struct {
	MaxLifetimeSeconds uint `json:"maxLifetimeSeconds"`
	MaxIdleSeconds     uint `json:"maxIdleSeconds"`
}

// Service ticket (and proxy ticket) expiration bounds
type STPolicyConf struct {
	MaxUses        int  `json:"maxUses"`
	TimeoutSeconds uint `json:"timeoutSeconds"`
}

func (c TicketConf) Validate() error {
	if c.TGT.MaxLifetimeSeconds == 0 {
		return errors.New("Tickets: TGT max lifetime (maxLifetimeSeconds) must be positive.")
	}
	if c.ST.MaxUses <= 0 {
		return errors.New("Tickets: ST use count (maxUses) must be positive.")
	}
	if c.ST.TimeoutSeconds == 0 {
		return errors.New("Tickets: ST timeout (timeoutSeconds) must be positive.")
	}
	return nil
}

// Authentication pipeline config
type AuthConf struct {
	// Users accepted by the built-in username/password handler
	Users map[string]string `json:"users"`
}

func (c AuthConf) Validate() error {
	if len(c.Users) == 0 {
		return errors.New("Auth: no users configured (users).")
	}
	return nil
}
