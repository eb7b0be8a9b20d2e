/*
DESCRIPTION
  description.go builds the gst-launch description of the graph that carries
  producer frames to an encoded access unit sink.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package gstreamer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ausocean/streamer/codec/codecutil"
	"github.com/ausocean/streamer/producer"
	"github.com/ausocean/streamer/streamer"
	"github.com/ausocean/streamer/streamer/config"
)

// Element names looked up once the pipeline is parsed.
const (
	srcName  = "src"
	sinkName = "sink"
)

// Queue and sink bounds, in buffers.
const (
	queueBuffers = 4
	sinkBuffers  = 8
)

// Errors returned when describing a graph.
var (
	errBadRotation = errors.New("rotation must be one of 0, 90, 180 or 270")
	errBadEncoder  = errors.New("unknown encoder")
	errBadRate     = errors.New("frame rate must be non-zero")
)

// flipMethods maps rotations to videoflip methods.
var flipMethods = map[uint]string{
	90:  "clockwise",
	180: "rotate-180",
	270: "counterclockwise",
}

// OutputCodec returns the codec of the access units produced by a graph
// built for c. Compressed input that is not rotated is passed through in its
// own codec; everything else is encoded as H.264.
func OutputCodec(c streamer.GraphConfig) string {
	if c.Layout.Format == producer.FormatH265 && c.Rotation == 0 {
		return codecutil.H265
	}
	return codecutil.H264
}

// Description returns the gst-launch description of the graph for c.
func Description(c streamer.GraphConfig) (string, error) {
	if c.FrameRate == 0 {
		return "", errBadRate
	}
	flip, ok := flipMethods[c.Rotation]
	if !ok && c.Rotation != 0 {
		return "", fmt.Errorf("%w: %d", errBadRotation, c.Rotation)
	}

	var parts []string
	add := func(p ...string) { parts = append(parts, p...) }

	add(fmt.Sprintf("appsrc name=%s is-live=true format=time do-timestamp=false block=false caps=%q", srcName, inputCaps(c)))
	add(fmt.Sprintf("queue max-size-buffers=%d max-size-bytes=0 max-size-time=0", queueBuffers))

	switch {
	case !c.Layout.Compressed():
		add("videoconvert")
		if flip != "" {
			add("videoflip method=" + flip)
		}
		enc, err := encoder(c)
		if err != nil {
			return "", err
		}
		add("video/x-raw,format=I420")
		add(enc...)
		add("h264parse config-interval=-1")

	case flip == "":
		add(parser(c.Layout.Format) + " config-interval=-1")

	default:
		add(parser(c.Layout.Format), decoder(c.Layout.Format), "videoconvert", "videoflip method="+flip)
		enc, err := encoder(c)
		if err != nil {
			return "", err
		}
		add("video/x-raw,format=I420")
		add(enc...)
		add("h264parse config-interval=-1")
	}

	add(outputCaps(OutputCodec(c)))
	add(fmt.Sprintf("appsink name=%s sync=false max-buffers=%d drop=false", sinkName, sinkBuffers))
	return strings.Join(parts, " ! "), nil
}

// inputCaps returns the caps of the frames pushed to the graph.
func inputCaps(c streamer.GraphConfig) string {
	l := c.Layout
	switch l.Format {
	case producer.FormatH264:
		return fmt.Sprintf("video/x-h264,stream-format=byte-stream,alignment=au,width=%d,height=%d,framerate=%d/1", l.Width, l.Height, c.FrameRate)
	case producer.FormatH265:
		return fmt.Sprintf("video/x-h265,stream-format=byte-stream,alignment=au,width=%d,height=%d,framerate=%d/1", l.Width, l.Height, c.FrameRate)
	default:
		return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=%d/1", l.Pixel, l.Width, l.Height, c.FrameRate)
	}
}

func outputCaps(codec string) string {
	if codec == codecutil.H265 {
		return "video/x-h265,stream-format=byte-stream,alignment=au"
	}
	return "video/x-h264,stream-format=byte-stream,alignment=au"
}

func parser(f producer.Format) string {
	if f == producer.FormatH265 {
		return "h265parse"
	}
	return "h264parse"
}

func decoder(f producer.Format) string {
	if f == producer.FormatH265 {
		return "avdec_h265"
	}
	return "avdec_h264"
}

// encoder returns the H.264 encoder elements for c. Key frames are produced
// once a second.
func encoder(c streamer.GraphConfig) ([]string, error) {
	switch c.Encoder {
	case config.EncoderHardware:
		return []string{
			fmt.Sprintf("v4l2h264enc extra-controls=\"controls,video_bitrate=%d,h264_i_frame_period=%d\"", c.Bitrate, c.FrameRate),
			"video/x-h264,level=(string)4",
		}, nil
	case config.EncoderSoftware:
		kbps := c.Bitrate / 1000
		if kbps == 0 {
			kbps = 1
		}
		return []string{
			fmt.Sprintf("x264enc tune=zerolatency speed-preset=ultrafast bitrate=%d key-int-max=%d", kbps, c.FrameRate),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errBadEncoder, c.Encoder)
	}
}
