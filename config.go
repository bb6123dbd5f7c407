package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/registry"
)

// loads service configuration from a file at the given path
func loadConfig(confPath *string) (*common.Config, error) {
	file, err := os.ReadFile(*confPath)
	if err != nil {
		return nil, err
	}

	var conf common.Config
	err = json.Unmarshal(file, &conf)
	if err != nil {
		return nil, err
	}

	// VALIDATE HTTP
	if conf.HTTP.BindAddr == "" || conf.HTTP.BindPort == 0 {
		return nil, fmt.Errorf("HTTP bindAddr and bindPort have to be defined")
	}

	// VALIDATE REGISTRY CONFIG
	// Check if backend is supported
	if !registry.SupportedBackends(conf.Registry.Backend.Type) {
		return nil, fmt.Errorf("Registry backend type is not supported: %s", conf.Registry.Backend.Type)
	}
	// Check DSN
	_, err = url.Parse(conf.Registry.Backend.DSN)
	if err != nil {
		return nil, err
	}
	if conf.Registry.SweepInterval == 0 {
		conf.Registry.SweepInterval = 60
	}
	if conf.Registry.Replication.Enabled {
		if err := conf.Registry.Replication.Validate(); err != nil {
			return nil, err
		}
	}

	// VALIDATE TICKET POLICIES
	if err := conf.Tickets.Validate(); err != nil {
		return nil, err
	}

	// VALIDATE AUTH CONFIG
	if err := conf.Auth.Validate(); err != nil {
		return nil, err
	}

	return &conf, nil
}
