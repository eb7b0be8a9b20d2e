/*
DESCRIPTION
  variables.go contains a list of structs that provide a variable Name, type in
  a string format, a function for updating the variable in the Config struct
  from a string, and finally, a validation function to check the validity of the
  corresponding field value in the Config.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/ausocean/utils/sliceutils"
)

// Config map Keys.
const (
	KeyAlwaysOn            = "AlwaysOn"
	KeyBackoffDelay        = "BackoffDelay"
	KeyBitrate             = "Bitrate"
	KeyChannelCapacity     = "ChannelCapacity"
	KeyChannelPollInterval = "ChannelPollInterval"
	KeyDecimator           = "Decimator"
	KeyDescribeTimeout     = "DescribeTimeout"
	KeyEncoder             = "Encoder"
	KeyInputChannel        = "InputChannel"
	KeyLogging             = "Logging"
	KeyMaxFrameSize        = "MaxFrameSize"
	KeyMountPath           = "MountPath"
	KeyPort                = "Port"
	KeyProbeTimeout        = "ProbeTimeout"
	KeyRotation            = "Rotation"
	KeySessionTimeout      = "SessionTimeout"
	KeySweepInterval       = "SweepInterval"
)

// Config map parameter types.
const (
	typeString   = "string"
	typeUint     = "uint"
	typeBool     = "bool"
	typeDuration = "duration"
)

// Default variable values.
const (
	defaultVerbosity    = logging.Info
	defaultInputChannel = "/run/camera/hires.sock"
	defaultRotation     = 0
	defaultBitrate      = 1000000
	defaultDecimator    = 1
	defaultPort         = 8900
	defaultMountPath    = "/live"
	defaultEncoder      = EncoderHardware

	// Producer channel defaults.
	defaultChannelCapacity     = 16
	defaultMaxFrameSize        = 16 << 20 // bytes
	defaultChannelPollInterval = 500 * time.Millisecond
	defaultProbeTimeout        = 2 * time.Second
	defaultBackoffDelay        = 1 * time.Second

	// Viewer session defaults.
	defaultSweepInterval   = 2 * time.Second
	defaultSessionTimeout  = 60 * time.Second
	defaultDescribeTimeout = 5 * time.Second
)

// Variables describes the variables that can be used for streamer control.
// These structs provide the name and type of variable, a function for updating
// this variable in a Config, and a function for validating the value of the variable.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeyAlwaysOn,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.AlwaysOn = parseBool(KeyAlwaysOn, v, c) },
	},
	{
		Name:   KeyBackoffDelay,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.BackoffDelay = parseDuration(KeyBackoffDelay, v, c) },
		Validate: func(c *Config) {
			c.BackoffDelay = positiveDuration(KeyBackoffDelay, c.BackoffDelay, c, defaultBackoffDelay)
		},
	},
	{
		Name:   KeyBitrate,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Bitrate = parseUint(KeyBitrate, v, c) },
		Validate: func(c *Config) {
			c.Bitrate = lessThanOrEqual(KeyBitrate, c.Bitrate, 0, c, defaultBitrate)
		},
	},
	{
		Name:   KeyChannelCapacity,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.ChannelCapacity = parseUint(KeyChannelCapacity, v, c) },
		Validate: func(c *Config) {
			c.ChannelCapacity = lessThanOrEqual(KeyChannelCapacity, c.ChannelCapacity, 1, c, defaultChannelCapacity)
		},
	},
	{
		Name:   KeyChannelPollInterval,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.ChannelPollInterval = parseDuration(KeyChannelPollInterval, v, c) },
		Validate: func(c *Config) {
			c.ChannelPollInterval = positiveDuration(KeyChannelPollInterval, c.ChannelPollInterval, c, defaultChannelPollInterval)
		},
	},
	{
		Name:   KeyDecimator,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Decimator = parseUint(KeyDecimator, v, c) },
		Validate: func(c *Config) {
			c.Decimator = lessThanOrEqual(KeyDecimator, c.Decimator, 0, c, defaultDecimator)
		},
	},
	{
		Name:   KeyDescribeTimeout,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.DescribeTimeout = parseDuration(KeyDescribeTimeout, v, c) },
		Validate: func(c *Config) {
			c.DescribeTimeout = positiveDuration(KeyDescribeTimeout, c.DescribeTimeout, c, defaultDescribeTimeout)
		},
	},
	{
		Name:   KeyEncoder,
		Type:   "enum:" + strings.Join(Encoders, ","),
		Update: func(c *Config, v string) { c.Encoder = strings.ToLower(v) },
		Validate: func(c *Config) {
			if !sliceutils.ContainsString(Encoders, c.Encoder) {
				c.LogInvalidField(KeyEncoder, defaultEncoder)
				c.Encoder = defaultEncoder
			}
		},
	},
	{
		Name:   KeyInputChannel,
		Type:   typeString,
		Update: func(c *Config, v string) { c.InputChannel = v },
		Validate: func(c *Config) {
			if c.InputChannel == "" {
				c.LogInvalidField(KeyInputChannel, defaultInputChannel)
				c.InputChannel = defaultInputChannel
			}
		},
	},
	{
		Name: KeyLogging,
		Type: "enum:Debug,Info,Warning,Error,Fatal",
		Update: func(c *Config, v string) {
			switch v {
			case "Debug":
				c.LogLevel = logging.Debug
			case "Info":
				c.LogLevel = logging.Info
			case "Warning":
				c.LogLevel = logging.Warning
			case "Error":
				c.LogLevel = logging.Error
			case "Fatal":
				c.LogLevel = logging.Fatal
			default:
				c.Logger.Warning("invalid Logging param", "value", v)
			}
		},
		Validate: func(c *Config) {
			switch c.LogLevel {
			case logging.Debug, logging.Info, logging.Warning, logging.Error, logging.Fatal:
			default:
				c.LogInvalidField("LogLevel", defaultVerbosity)
				c.LogLevel = defaultVerbosity
			}
		},
	},
	{
		Name:   KeyMaxFrameSize,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MaxFrameSize = parseUint(KeyMaxFrameSize, v, c) },
		Validate: func(c *Config) {
			c.MaxFrameSize = lessThanOrEqual(KeyMaxFrameSize, c.MaxFrameSize, 0, c, defaultMaxFrameSize)
		},
	},
	{
		Name:   KeyMountPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.MountPath = v },
		Validate: func(c *Config) {
			if c.MountPath == "" || !strings.HasPrefix(c.MountPath, "/") {
				c.LogInvalidField(KeyMountPath, defaultMountPath)
				c.MountPath = defaultMountPath
			}
		},
	},
	{
		Name:   KeyPort,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Port = parseUint(KeyPort, v, c) },
		Validate: func(c *Config) {
			if c.Port == 0 || c.Port > 65535 {
				c.LogInvalidField(KeyPort, defaultPort)
				c.Port = defaultPort
			}
		},
	},
	{
		Name:   KeyProbeTimeout,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.ProbeTimeout = parseDuration(KeyProbeTimeout, v, c) },
		Validate: func(c *Config) {
			c.ProbeTimeout = positiveDuration(KeyProbeTimeout, c.ProbeTimeout, c, defaultProbeTimeout)
		},
	},
	{
		Name:   KeyRotation,
		Type:   "enum:0,90,180,270",
		Update: func(c *Config, v string) { c.Rotation = parseUint(KeyRotation, v, c) },
		Validate: func(c *Config) {
			switch c.Rotation {
			case 0, 90, 180, 270:
			default:
				c.Logger.Warning("rotation must be one of 0, 90, 180 or 270", "value", c.Rotation)
				c.LogInvalidField(KeyRotation, defaultRotation)
				c.Rotation = defaultRotation
			}
		},
	},
	{
		Name:   KeySessionTimeout,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.SessionTimeout = parseDuration(KeySessionTimeout, v, c) },
		Validate: func(c *Config) {
			c.SessionTimeout = positiveDuration(KeySessionTimeout, c.SessionTimeout, c, defaultSessionTimeout)
		},
	},
	{
		Name:   KeySweepInterval,
		Type:   typeDuration,
		Update: func(c *Config, v string) { c.SweepInterval = parseDuration(KeySweepInterval, v, c) },
		Validate: func(c *Config) {
			c.SweepInterval = positiveDuration(KeySweepInterval, c.SweepInterval, c, defaultSweepInterval)
		},
	},
}

func parseUint(n, v string, c *Config) uint {
	_v, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected unsigned int for param %s", n), "value", v)
	}
	return uint(_v)
}

func parseBool(n, v string, c *Config) (b bool) {
	switch strings.ToLower(v) {
	case "true":
		b = true
	case "false":
		b = false
	default:
		c.Logger.Warning(fmt.Sprintf("expect bool for param %s", n), "value", v)
	}
	return
}

// parseDuration accepts a Go duration string, or a plain integer which is
// taken as a number of seconds.
func parseDuration(n, v string, c *Config) time.Duration {
	if s, err := strconv.ParseUint(v, 10, 64); err == nil {
		return time.Duration(s) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		c.Logger.Warning(fmt.Sprintf("expected duration for param %s", n), "value", v)
	}
	return d
}

func lessThanOrEqual(n string, v, cmp uint, c *Config, def uint) uint {
	if v <= cmp {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}

func positiveDuration(n string, v time.Duration, c *Config, def time.Duration) time.Duration {
	if v <= 0 {
		c.LogInvalidField(n, def)
		return def
	}
	return v
}
