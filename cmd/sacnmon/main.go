// Command sacnmon listens to sACN universes and logs received DMX frames,
// protocol events and discovered sources.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gopatchy/sacn"
	"github.com/gopatchy/sacn/config"
	"github.com/gopatchy/sacn/logger"
	"github.com/gopatchy/sacn/metrics"
	"github.com/gopatchy/sacn/packet"
	"github.com/gopatchy/sacn/transport"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	ifaceName := flag.String("interface", "", "network interface for multicast (overrides config)")
	universesFlag := flag.String("universes", "", "comma-separated universes to listen to (overrides config)")
	pcapIface := flag.String("pcap", "", "observe via packet capture on this interface instead of binding")
	metricsListen := flag.String("metrics-listen", "", "Prometheus metrics listen address (empty to disable)")
	debug := flag.Bool("debug", false, "log every received frame")
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

	if *listen != "" {
		cfg.Listen = *listen
	}
	if *ifaceName != "" {
		cfg.Interface = *ifaceName
	}
	if *universesFlag != "" {
		cfg.Universes, err = parseUniverses(*universesFlag)
		if err != nil {
			log.Error("universe list invalid", "err", err)
			os.Exit(1)
		}
	}

	t, err := openTransport(cfg, *pcapIface)
	if err != nil {
		log.Error("transport error", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	opts := []sacn.ReceiverOption{
		sacn.WithLogger(log),
		sacn.WithReceiverMetrics(metrics.NewReceiver(reg)),
	}
	if cfg.Receive.SourceCap > 0 {
		opts = append(opts, sacn.WithSourceCap(cfg.Receive.SourceCap))
	}
	if cfg.Receive.Merge == "htp" {
		opts = append(opts, sacn.WithMergeFunc(sacn.MergeHTP))
	}

	recv, err := sacn.NewReceiver(t, opts...)
	if err != nil {
		log.Error("receiver error", "err", err)
		os.Exit(1)
	}
	defer recv.Close()

	recv.SetProcessPreviewData(cfg.Receive.ProcessPreview)
	recv.SetAnnounceSourceDiscovery(true)
	recv.SetAnnounceStreamTermination(cfg.Receive.AnnounceTermination)
	recv.SetAnnounceTimeout(cfg.Receive.AnnounceTimeout)

	if err := recv.ListenUniverses(cfg.Universes...); err != nil {
		log.Error("listen error", "err", err)
		os.Exit(1)
	}
	log.Info("listening", "addr", cfg.Listen, "universes", cfg.Universes)

	if *metricsListen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Info("metrics listening", "addr", *metricsListen)
			if err := http.ListenAndServe(*metricsListen, mux); err != nil {
				log.Error("metrics server error", "err", err)
			}
		}()
	}

	var frameCount, eventCount atomic.Uint64

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			sources := recv.DiscoveredSources()
			log.Info("stats",
				"frames", frameCount.Load(),
				"events", eventCount.Load(),
				"sources", len(sources))
			for _, s := range sources {
				log.Info("discovered source",
					logger.KeySourceName, s.Name,
					logger.KeySource, s.CID,
					"universes", len(s.Universes()))
			}
		}
	}()

	go func() {
		for {
			frames, err := recv.Recv(-1)
			if err != nil {
				var (
					discovered *sacn.SourceDiscoveredError
					terminated *sacn.UniverseTerminatedError
					timedOut   *sacn.UniverseTimeoutError
					outOfSeq   *sacn.OutOfSequenceError
				)
				switch {
				case errors.As(err, &discovered):
					eventCount.Add(1)
					log.Info("source discovered", logger.KeySourceName, discovered.Name)
				case errors.As(err, &terminated):
					eventCount.Add(1)
					log.Info("universe terminated",
						logger.KeyUniverse, terminated.Universe,
						logger.KeySource, terminated.CID)
				case errors.As(err, &timedOut):
					eventCount.Add(1)
					log.Info("universe timed out",
						logger.KeyUniverse, timedOut.Universe,
						logger.KeySource, timedOut.CID)
				case errors.As(err, &outOfSeq):
					log.Warn("out of sequence",
						logger.KeyUniverse, outOfSeq.Universe,
						logger.KeySequence, outOfSeq.Got)
				case errors.Is(err, transport.ErrClosed):
					return
				default:
					log.Error("recv error", "err", err)
					return
				}
				continue
			}

			frameCount.Add(uint64(len(frames)))
			for _, f := range frames {
				log.Debug("frame",
					logger.KeyUniverse, f.Universe,
					logger.KeySyncUniverse, f.SyncUniverse,
					logger.KeyPriority, f.Priority,
					logger.KeySource, f.CID,
					logger.KeySlots, len(f.Values))
			}
		}
	}()

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")
}

func openTransport(cfg *config.Config, pcapIface string) (transport.PacketTransport, error) {
	if pcapIface != "" {
		return transport.NewCapture(pcapIface)
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen address: %w", err)
	}

	var iface *net.Interface
	if cfg.Interface != "" {
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("interface: %w", err)
		}
	}
	return transport.NewUDP(addr, iface)
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
