/*
DESCRIPTION
  description_test.go provides testing for graph descriptions.

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
	"strings"
	"testing"

	"github.com/ausocean/streamer/codec/codecutil"
	"github.com/ausocean/streamer/producer"
	"github.com/ausocean/streamer/streamer"
	"github.com/ausocean/streamer/streamer/config"
)

func layout(t *testing.T, f producer.Format, w, h uint32) streamer.Layout {
	t.Helper()
	l, err := streamer.ResolveLayout(f, w, h)
	if err != nil {
		t.Fatalf("could not resolve layout: %v", err)
	}
	return l
}

func TestDescription(t *testing.T) {
	tests := []struct {
		name    string
		cfg     streamer.GraphConfig
		want    []string // Elements expected in order.
		without []string
		codec   string
	}{
		{
			name: "raw software",
			cfg: streamer.GraphConfig{
				Layout: layout(t, producer.FormatYUV420, 640, 480), Width: 640, Height: 480,
				FrameRate: 15, Bitrate: 2000000, Encoder: config.EncoderSoftware,
			},
			want: []string{
				`appsrc name=src`,
				`caps="video/x-raw,format=I420,width=640,height=480,framerate=15/1"`,
				`videoconvert`,
				`x264enc tune=zerolatency speed-preset=ultrafast bitrate=2000 key-int-max=15`,
				`h264parse config-interval=-1`,
				`video/x-h264,stream-format=byte-stream,alignment=au`,
				`appsink name=sink`,
			},
			without: []string{"videoflip"},
			codec:   codecutil.H264,
		},
		{
			name: "raw hardware rotated",
			cfg: streamer.GraphConfig{
				Layout: layout(t, producer.FormatNV12, 1280, 720), Width: 720, Height: 1280,
				FrameRate: 30, Rotation: 90, Bitrate: 1000000, Encoder: config.EncoderHardware,
			},
			want: []string{
				`format=NV12`,
				`videoflip method=clockwise`,
				`v4l2h264enc extra-controls="controls,video_bitrate=1000000,h264_i_frame_period=30"`,
				`h264parse`,
			},
			codec: codecutil.H264,
		},
		{
			name: "h264 passthrough",
			cfg: streamer.GraphConfig{
				Layout: layout(t, producer.FormatH264, 1920, 1080), Width: 1920, Height: 1080,
				FrameRate: 30, Encoder: config.EncoderHardware,
			},
			want: []string{
				`caps="video/x-h264,stream-format=byte-stream,alignment=au,width=1920,height=1080,framerate=30/1"`,
				`h264parse config-interval=-1`,
				`appsink`,
			},
			without: []string{"x264enc", "v4l2h264enc", "avdec_h264", "videoflip"},
			codec:   codecutil.H264,
		},
		{
			name: "h265 passthrough",
			cfg: streamer.GraphConfig{
				Layout: layout(t, producer.FormatH265, 1920, 1080), Width: 1920, Height: 1080,
				FrameRate: 30, Encoder: config.EncoderHardware,
			},
			want:    []string{`video/x-h265`, `h265parse config-interval=-1`, `video/x-h265,stream-format=byte-stream,alignment=au`},
			without: []string{"h264"},
			codec:   codecutil.H265,
		},
		{
			name: "h265 rotated",
			cfg: streamer.GraphConfig{
				Layout: layout(t, producer.FormatH265, 1920, 1080), Width: 1920, Height: 1080,
				FrameRate: 30, Rotation: 180, Bitrate: 1000000, Encoder: config.EncoderSoftware,
			},
			want:  []string{`h265parse`, `avdec_h265`, `videoflip method=rotate-180`, `x264enc`, `h264parse`},
			codec: codecutil.H264,
		},
	}

	for _, test := range tests {
		got, err := Description(test.cfg)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		off := 0
		for _, w := range test.want {
			i := strings.Index(got[off:], w)
			if i < 0 {
				t.Errorf("%s: %q not found in order in %q", test.name, w, got)
				break
			}
			off += i + len(w)
		}
		for _, w := range test.without {
			if strings.Contains(got, w) {
				t.Errorf("%s: unexpected %q in %q", test.name, w, got)
			}
		}
		if c := OutputCodec(test.cfg); c != test.codec {
			t.Errorf("%s: got output codec %s want %s", test.name, c, test.codec)
		}
	}
}

func TestDescriptionErrors(t *testing.T) {
	l := layout(t, producer.FormatRaw8, 640, 480)
	tests := []struct {
		cfg  streamer.GraphConfig
		want error
	}{
		{streamer.GraphConfig{Layout: l, FrameRate: 30, Rotation: 45, Encoder: config.EncoderSoftware}, errBadRotation},
		{streamer.GraphConfig{Layout: l, FrameRate: 30, Encoder: "vaapi"}, errBadEncoder},
		{streamer.GraphConfig{Layout: l, Encoder: config.EncoderSoftware}, errBadRate},
	}
	for i, test := range tests {
		_, err := Description(test.cfg)
		if !errors.Is(err, test.want) {
			t.Errorf("test %d: got error %v want %v", i, err, test.want)
		}
	}
}
