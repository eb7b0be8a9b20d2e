/*
DESCRIPTION
  info.go provides the stream description a producer may publish next to its
  socket as a YAML file.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved. 

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package socket

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ausocean/streamer/producer"
)

// InfoExt is appended to the socket path to find the stream description.
const InfoExt = ".yaml"

type info struct {
	Format    string `yaml:"format"`
	Width     uint32 `yaml:"width"`
	Height    uint32 `yaml:"height"`
	FrameRate uint   `yaml:"framerate"`
}

// Describe returns the stream description published by the producer, if
// there is a complete one.
func (s *Socket) Describe() (producer.Info, bool) {
	b, err := os.ReadFile(s.path + InfoExt)
	if err != nil {
		return producer.Info{}, false
	}

	var i info
	err = yaml.Unmarshal(b, &i)
	if err != nil {
		s.log.Warning(pkg+"could not parse stream description", "error", err.Error())
		return producer.Info{}, false
	}

	f, err := producer.ParseFormat(i.Format)
	if err != nil {
		s.log.Warning(pkg+"bad format in stream description", "error", err.Error())
		return producer.Info{}, false
	}
	if i.Width == 0 || i.Height == 0 || i.FrameRate == 0 {
		s.log.Debug(pkg+"incomplete stream description", "width", i.Width, "height", i.Height, "framerate", i.FrameRate)
		return producer.Info{}, false
	}
	return producer.Info{Format: f, Width: i.Width, Height: i.Height, FrameRate: i.FrameRate}, true
}

// WriteInfo publishes a stream description for the socket at path.
func WriteInfo(path string, in producer.Info) error {
	b, err := yaml.Marshal(info{
		Format:    in.Format.String(),
		Width:     in.Width,
		Height:    in.Height,
		FrameRate: in.FrameRate,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path+InfoExt, b, 0644)
}
