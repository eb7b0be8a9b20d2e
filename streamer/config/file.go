/*
DESCRIPTION
  file.go provides loading of configuration variables from a YAML file.

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
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML file of variable names to scalar values, such as
//
//	InputChannel: /run/camera/tracking.sock
//	Rotation: 180
//	AlwaysOn: true
//
// and returns the values in the form accepted by Config.Update.
func Load(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode is like Load but reads from r.
func Decode(r io.Reader) (map[string]string, error) {
	var raw map[string]yaml.Node
	err := yaml.NewDecoder(r).Decode(&raw)
	if err == io.EOF {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}

	vars := make(map[string]string, len(raw))
	for k, n := range raw {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("config variable %s is not a scalar", k)
		}
		vars[k] = n.Value
	}
	return vars, nil
}
