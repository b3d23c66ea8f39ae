// Command sacnsend transmits a fixed DMX level to one or more sACN
// universes until interrupted, optionally synchronized and advertised via
// universe discovery.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gopatchy/sacn"
	"github.com/gopatchy/sacn/config"
	"github.com/gopatchy/sacn/logger"
	"github.com/gopatchy/sacn/packet"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	universesFlag := flag.String("universes", "", "comma-separated universes to send on (overrides config)")
	level := flag.Int("level", 255, "slot level to transmit (0-255)")
	slots := flag.Int("slots", 512, "number of slots per universe (1-512)")
	fps := flag.Int("fps", 30, "frames per second")
	debug := flag.Bool("debug", false, "log every transmitted frame")
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *debug {
		cfg.Log.Level = "DEBUG"
	}
	log, err := logger.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}

	universes := cfg.Universes
	if *universesFlag != "" {
		universes, err = parseUniverses(*universesFlag)
		if err != nil {
			log.Error("universe list invalid", "err", err)
			os.Exit(1)
		}
	}
	if len(universes) == 0 {
		log.Error("no universes to send on")
		os.Exit(1)
	}
	if *level < 0 || *level > 255 {
		log.Error("level out of range", "level", *level)
		os.Exit(1)
	}
	if *slots < 1 || *slots > 512 {
		log.Error("slot count out of range", "slots", *slots)
		os.Exit(1)
	}

	name := cfg.Send.SourceName
	if name == "" {
		name = "sacnsend"
	}

	sender, err := sacn.NewSenderIP(&net.UDPAddr{IP: net.IPv4zero, Port: 0}, name, sacn.WithSenderLogger(log))
	if err != nil {
		log.Error("sender error", "err", err)
		os.Exit(1)
	}
	defer sender.Close()

	if err := sender.RegisterUniverses(universes); err != nil {
		log.Error("register error", "err", err)
		os.Exit(1)
	}
	if cfg.Send.Discovery {
		if err := sender.SetIsSendingDiscovery(true); err != nil {
			log.Error("discovery error", "err", err)
			os.Exit(1)
		}
	}

	opts := &sacn.SendOptions{
		Priority:     cfg.Send.Priority,
		SyncUniverse: cfg.Send.SyncUniverse,
	}
	if cfg.Send.Destination != "" {
		opts.Dst, err = net.ResolveUDPAddr("udp", cfg.Send.Destination)
		if err != nil {
			log.Error("destination invalid", "err", err)
			os.Exit(1)
		}
	}

	// One START code byte plus the requested slots, repeated per universe.
	chunk := make([]byte, 1+*slots)
	for i := 1; i < len(chunk); i++ {
		chunk[i] = byte(*level)
	}
	data := make([]byte, 0, len(universes)*packet.UniverseChannelCapacity)
	for range universes {
		padded := make([]byte, packet.UniverseChannelCapacity)
		copy(padded, chunk)
		data = append(data, padded...)
	}

	log.Info("sending",
		"universes", universes,
		"level", *level,
		"fps", *fps,
		logger.KeySyncUniverse, cfg.Send.SyncUniverse)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*fps))
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			log.Info("terminating streams")
			return
		case <-ticker.C:
			if err := sender.Send(universes, data, opts); err != nil {
				log.Error("send error", "err", err)
				return
			}
			if cfg.Send.SyncUniverse != 0 {
				if err := sender.SendSyncPacket(cfg.Send.SyncUniverse, opts.Dst); err != nil {
					log.Error("sync error", "err", err)
					return
				}
			}
			log.Debug("sent", "universes", len(universes))
		}
	}
}

func parseUniverses(s string) ([]uint16, error) {
	var out []uint16
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		u, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("universe %q: %w", part, err)
		}
		if err := packet.ValidateUniverse(uint16(u)); err != nil {
			return nil, err
		}
		out = append(out, uint16(u))
	}
	return out, nil
}
