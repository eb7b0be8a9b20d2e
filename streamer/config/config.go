/*
DESCRIPTION
  config.go contains the configuration settings for the streamer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config contains the configuration settings for the streamer.
package config

import (
	"time"

	"github.com/ausocean/utils/logging"
)

// Encoders used by the graph for raw input.
const (
	EncoderHardware = "hardware"
	EncoderSoftware = "software"
)

// Encoders lists the valid values of Config.Encoder.
var Encoders = []string{EncoderHardware, EncoderSoftware}

// Config provides parameters relevant to a streamer instance. A new config
// must be passed to the constructor. Default values for these fields are
// defined as consts in variables.go.
type Config struct {
	// Logger holds an implementation of the Logger interface as defined in
	// github.com/ausocean/utils/logging. This must be set for the streamer
	// to work correctly.
	Logger logging.Logger

	// LogLevel is the streamer logging verbosity level.
	// Valid values are defined by enums from the logger package: logging.Debug,
	// logging.Info, logging.Warning, logging.Error, logging.Fatal.
	LogLevel int8

	// InputChannel is the path of the producer's named socket.
	InputChannel string

	// Rotation is the requested output rotation in degrees. Valid values are
	// 0, 90, 180 and 270.
	Rotation uint

	// Bitrate is the target encoder bitrate in bits per second. It is only
	// used when the graph encodes.
	Bitrate uint

	// Decimator is the decimation factor; one in every Decimator input frames
	// is forwarded. It is forced to 1 for compressed input.
	Decimator uint

	Port      uint   // Port is the RTSP server port.
	MountPath string // MountPath is the RTSP path the stream is served on.

	// Encoder selects the graph's encoder for raw input, one of Encoders.
	Encoder string

	// AlwaysOn keeps a session running whether or not viewers are connected.
	AlwaysOn bool

	ChannelCapacity uint // ChannelCapacity is the number of frames the producer channel may queue.
	MaxFrameSize    uint // MaxFrameSize is the largest frame accepted from the producer in bytes.

	// ChannelPollInterval bounds each wait for the producer channel to appear.
	ChannelPollInterval time.Duration

	// ProbeTimeout bounds sampling of frames to derive the stream parameters.
	ProbeTimeout time.Duration

	// BackoffDelay is the delay before a new attempt once streaming ends.
	BackoffDelay time.Duration

	SweepInterval   time.Duration // SweepInterval is the period of the viewer expiry sweep.
	SessionTimeout  time.Duration // SessionTimeout is how long a viewer may be idle before it expires.
	DescribeTimeout time.Duration // DescribeTimeout bounds how long a viewer waits for the stream to start.
}

// Validate checks for any errors in the config fields and defaults settings
// if particular parameters have not been defined.
func (c *Config) Validate() error {
	for _, v := range Variables {
		if v.Validate != nil {
			v.Validate(c)
		}
	}
	return nil
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values and converting into correct type, and then
// sets the config struct fields as appropriate.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func (c *Config) LogInvalidField(name string, def interface{}) {
	c.Logger.Info(name+" bad or unset, defaulting", name, def)
}
