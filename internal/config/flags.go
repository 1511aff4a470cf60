package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names.
const (
	FlagBroker         = "broker"
	FlagClientID       = "client-id"
	FlagTopicPrefix    = "topic-prefix"
	FlagChip           = "chip"
	FlagPins           = "pins"
	FlagActiveLow      = "active-low"
	FlagStatusInterval = "status-interval"
	FlagTick           = "tick"
	FlagJoinRetry      = "join-retry"
	FlagHTTP           = "http"
	FlagWSBroker       = "ws-broker"
	FlagLogFile        = "log-file"
)

// AddFlags registers the overridable settings on fs with the built-in
// defaults shown in help.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagBroker, d.Link.Broker, "MQTT broker address")
	fs.String(FlagClientID, d.Link.ClientID, "MQTT client ID")
	fs.String(FlagTopicPrefix, d.Link.TopicPrefix, "MQTT topic prefix for uplinks and downlinks")
	fs.String(FlagChip, d.Relays.Chip, "GPIO chip for relay outputs")
	fs.IntSlice(FlagPins, d.Relays.Pins, "BCM pin numbers for relays 1-8")
	fs.Bool(FlagActiveLow, d.Relays.ActiveLow, "Relay board energizes on a low level")
	fs.Duration(FlagStatusInterval, d.Status.Interval, "Periodic status uplink interval")
	fs.Duration(FlagTick, d.Loop.Tick, "Control loop tick")
	fs.Duration(FlagJoinRetry, d.Loop.JoinRetry, "Join retry interval while not joined")
	fs.String(FlagHTTP, d.HTTP.Addr, "HTTP status address (empty to disable)")
	fs.String(FlagWSBroker, d.HTTP.WSBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	fs.String(FlagLogFile, d.Log.File, "Also write logs to this rotated file")
}

// ApplyFlags copies flags that were set on the command line into cfg.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = applyFlag(cfg, fs, f.Name)
	})
	return err
}

func applyFlag(cfg *Config, fs *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case FlagBroker:
		cfg.Link.Broker, err = fs.GetString(name)
	case FlagClientID:
		cfg.Link.ClientID, err = fs.GetString(name)
	case FlagTopicPrefix:
		cfg.Link.TopicPrefix, err = fs.GetString(name)
	case FlagChip:
		cfg.Relays.Chip, err = fs.GetString(name)
	case FlagPins:
		cfg.Relays.Pins, err = fs.GetIntSlice(name)
	case FlagActiveLow:
		cfg.Relays.ActiveLow, err = fs.GetBool(name)
	case FlagStatusInterval:
		cfg.Status.Interval, err = fs.GetDuration(name)
	case FlagTick:
		cfg.Loop.Tick, err = fs.GetDuration(name)
	case FlagJoinRetry:
		cfg.Loop.JoinRetry, err = fs.GetDuration(name)
	case FlagHTTP:
		cfg.HTTP.Addr, err = fs.GetString(name)
	case FlagWSBroker:
		cfg.HTTP.WSBroker, err = fs.GetString(name)
	case FlagLogFile:
		cfg.Log.File, err = fs.GetString(name)
	}
	if err != nil {
		return fmt.Errorf("flag --%s: %w", name, err)
	}
	return nil
}
