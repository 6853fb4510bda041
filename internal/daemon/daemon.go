// Package daemon is the composition root: it wires the device registry,
// discovery, scheduler, event bus, local IPP server, and per-printer
// infrastructure proxy engines into one running process (spec.md §6).
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/WaffleThief123/ippframework/internal/device"
	"github.com/WaffleThief123/ippframework/internal/events"
	"github.com/WaffleThief123/ippframework/internal/ippserver"
	"github.com/WaffleThief123/ippframework/internal/pipeline"
	"github.com/WaffleThief123/ippframework/internal/printer"
	"github.com/WaffleThief123/ippframework/internal/proxy"
	"github.com/WaffleThief123/ippframework/internal/scheduler"
)

// PrinterConfig describes one logical printer to host (spec.md §6
// `printers:` config list entry).
type PrinterConfig struct {
	Name      string
	DeviceURI string
	Driver    string // "raw" (default) or "pwg-raster-mono"

	// Proxy fields; ProxyURI empty means this printer is driven purely
	// by the local IPP server, never the infrastructure proxy engine.
	ProxyURI    string
	ProxyUUID   string
	ProxyBearer string
}

// Config holds the daemon configuration (spec.md §6 composition root).
type Config struct {
	IPPListenAddr string
	Printers      []PrinterConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		IPPListenAddr: ":8631",
	}
}

// Daemon owns every long-lived component of a running process: the
// local IPP server, the scheduler, and one infrastructure proxy engine
// per printer that names a ProxyURI.
type Daemon struct {
	config  Config
	sys     *ippserver.System
	server  *ippserver.Server
	engines []*proxy.Engine
	log     zerolog.Logger
}

// New builds a Daemon from config, registering every configured printer
// against a shared device registry, filter table, event bus, and
// scheduler (spec.md §6).
func New(config Config, log zerolog.Logger) (*Daemon, error) {
	reg := device.NewRegistry()
	filters := pipeline.NewTable()
	filters.Register("image/pwg-raster", pipeline.PWGRasterFormat, pipeline.RasterFilter)

	bus := events.NewBus()
	sched := scheduler.New(reg, filters, bus, log)
	sys := ippserver.NewSystem(sched, bus, log)

	d := &Daemon{
		config: config,
		sys:    sys,
		server: ippserver.NewServer(config.IPPListenAddr, sys),
		log:    log.With().Str("component", "daemon").Logger(),
	}

	for i, pc := range config.Printers {
		drv, err := driverByName(pc.Driver)
		if err != nil {
			return nil, fmt.Errorf("printer %q: %w", pc.Name, err)
		}

		p := printer.New(i+1, pc.Name, pc.DeviceURI)
		p.ProxyURI = pc.ProxyURI
		p.ProxyUUID = pc.ProxyUUID
		sys.AddPrinter(p, drv)

		if pc.ProxyURI != "" {
			engine := proxy.NewEngine(p, pc.ProxyURI, pc.ProxyUUID, pc.ProxyBearer, drv, sched, bus, log)
			d.engines = append(d.engines, engine)
		}
	}

	return d, nil
}

// driverByName resolves a configured driver name to a pipeline.Driver
// (spec.md GLOSSARY "Driver data"). "raw" is the zero-value pass-through
// driver the scheduler already special-cases when Format is empty;
// "pwg-raster-mono" registers a bi-level raster consumer whose
// RWriteLine is wired to the open device handle per job.
func driverByName(name string) (pipeline.Driver, error) {
	switch name {
	case "", "raw":
		return pipeline.Driver{}, nil
	case "pwg-raster-mono":
		return pipeline.Driver{
			Format:       pipeline.PWGRasterFormat,
			BitsPerColor: 1,
		}, nil
	default:
		return pipeline.Driver{}, fmt.Errorf("unknown driver %q", name)
	}
}

// Run starts the IPP server and every configured proxy engine, and
// blocks until ctx is canceled or a termination signal arrives (spec.md
// §6).
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info().
		Str("listen_addr", d.config.IPPListenAddr).
		Int("printers", len(d.config.Printers)).
		Int("proxy_engines", len(d.engines)).
		Msg("starting ippframework daemon")

	errCh := make(chan error, 1)
	go func() {
		if err := d.server.ListenAndServe(); err != nil {
			errCh <- fmt.Errorf("IPP server: %w", err)
		}
	}()

	engineCtx, cancelEngines := context.WithCancel(ctx)
	defer cancelEngines()
	for _, e := range d.engines {
		go e.Run(engineCtx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		d.log.Info().Msg("context canceled, shutting down")
		return nil
	case sig := <-sigChan:
		d.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		return nil
	case err := <-errCh:
		return err
	}
}

// pollTimeout bounds how long a one-shot discovery sweep (-list-devices)
// is allowed to run before the composition root gives up and reports
// what it found so far.
const pollTimeout = 5 * time.Second

// PollTimeout exposes pollTimeout for the CLI's -list-devices flag.
func PollTimeout() time.Duration { return pollTimeout }
