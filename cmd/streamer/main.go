/*
DESCRIPTION
  streamer is a program that reads camera frames from a local producer
  channel and serves them to viewers as an H.264 or H.265 RTSP stream.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Alan Noble <alan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package streamer is the entry point of the camera streaming service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/streamer/graph/gstreamer"
	"github.com/ausocean/streamer/producer/socket"
	"github.com/ausocean/streamer/protocol/rtsp"
	"github.com/ausocean/streamer/streamer"
	"github.com/ausocean/streamer/streamer/config"
	"github.com/ausocean/utils/logging"
)

// Current software version.
const version = "v0.1.0"

// Logging configuration.
const (
	logPath      = "/var/log/streamer/streamer.log"
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
	logSuppress  = true
)

const pkg = "streamer: "

// Verbosity levels accepted by the -v flag, from most to least verbose.
var verbosities = []string{"Debug", "Info", "Warning", "Error"}

// publisher adapts an RTSP server to the graph's Publisher interface.
type publisher struct{ *rtsp.Server }

func (p publisher) Publish(codec string) (gstreamer.Sink, error) {
	st, err := p.Server.Publish(codec)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func main() {
	var (
		bitrate    = flag.UintP("bitrate", "b", 0, "target bitrate of the encoder in bits per second")
		decimator  = flag.UintP("decimator", "d", 0, "forward one in every N raw frames")
		input      = flag.StringP("input", "i", "", "path of the producer channel socket")
		port       = flag.UintP("port", "p", 0, "RTSP listening port")
		rotation   = flag.UintP("rotation", "r", 0, "clockwise rotation in degrees; one of 0, 90, 180 or 270")
		software   = flag.BoolP("software-encode", "s", false, "encode raw frames in software")
		verbosity  = flag.UintP("verbosity", "v", 1, "log verbosity; 0 debug, 1 info, 2 warning, 3 error")
		configPath = flag.StringP("config", "c", "", "YAML file of configuration variables")
		alwaysOn   = flag.Bool("always-on", false, "keep the stream running with no viewers")
		help       = flag.BoolP("help", "h", false, "show usage")
	)
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logging.Info, io.MultiWriter(fileLog, os.Stderr), logSuppress)
	log.Info("starting streamer", "version", version)

	cfg := config.Config{Logger: log}
	if *configPath != "" {
		vars, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(pkg+"could not load config", "error", err.Error())
		}
		cfg.Update(vars)
	}

	// Flags given on the command line take precedence over the config file.
	vars := make(map[string]string)
	set := func(name, key, value string) {
		if flag.CommandLine.Changed(name) {
			vars[key] = value
		}
	}
	set("bitrate", config.KeyBitrate, strconv.FormatUint(uint64(*bitrate), 10))
	set("decimator", config.KeyDecimator, strconv.FormatUint(uint64(*decimator), 10))
	set("input", config.KeyInputChannel, *input)
	set("port", config.KeyPort, strconv.FormatUint(uint64(*port), 10))
	set("rotation", config.KeyRotation, strconv.FormatUint(uint64(*rotation), 10))
	set("always-on", config.KeyAlwaysOn, strconv.FormatBool(*alwaysOn))
	if flag.CommandLine.Changed("software-encode") {
		enc := config.EncoderHardware
		if *software {
			enc = config.EncoderSoftware
		}
		vars[config.KeyEncoder] = enc
	}
	if flag.CommandLine.Changed("verbosity") {
		if int(*verbosity) >= len(verbosities) {
			log.Fatal(pkg+"verbosity out of range", "verbosity", *verbosity)
		}
		vars[config.KeyLogging] = verbosities[*verbosity]
	}
	cfg.Update(vars)

	err := cfg.Validate()
	if err != nil {
		log.Fatal(pkg+"invalid config", "error", err.Error())
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, log)
	if err != nil {
		log.Fatal(pkg+"streamer stopped", "error", err.Error())
	}
	log.Info("streamer stopped")
}

// run wires the producer channel, the coordinator and the RTSP server
// together and blocks until ctx is cancelled or a component fails.
func run(ctx context.Context, cfg config.Config, log logging.Logger) error {
	ch := socket.New(cfg.InputChannel, int(cfg.ChannelCapacity), int(cfg.MaxFrameSize), log)
	srv := rtsp.NewServer(fmt.Sprintf(":%d", cfg.Port), cfg.MountPath, cfg.DescribeTimeout, log)

	st, err := streamer.New(cfg, ch, gstreamer.NewGraphFunc(publisher{srv}, log), streamer.WithExpireFunc(srv.Drop))
	if err != nil {
		return fmt.Errorf("could not create streamer: %w", err)
	}

	err = srv.Start(st)
	if err != nil {
		return fmt.Errorf("could not start RTSP server: %w", err)
	}
	notify(log, daemon.SdNotifyReady)
	defer notify(log, daemon.SdNotifyStopping)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ctx) })
	g.Go(func() error { return st.Run(ctx) })
	g.Go(func() error { watchdog(ctx, log); return nil })
	return g.Wait()
}

// watchdog sends systemd keep-alive notifications at half the configured
// watchdog interval until ctx is cancelled. It returns at once if the
// watchdog is not enabled.
func watchdog(ctx context.Context, log logging.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warning("could not check systemd watchdog", "error", err.Error())
		return
	}
	if interval == 0 {
		return
	}

	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			notify(log, daemon.SdNotifyWatchdog)
		}
	}
}

func notify(log logging.Logger, state string) {
	_, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warning("could not notify systemd", "state", state, "error", err.Error())
	}
}
