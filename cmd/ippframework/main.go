package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/WaffleThief123/ippframework/internal/daemon"
	"github.com/WaffleThief123/ippframework/internal/device"
	"github.com/WaffleThief123/ippframework/internal/discovery"
)

// Version information (set at build time).
var (
	version = "dev"
	commit  = "unknown"
)

// configFile mirrors the on-disk YAML layout: a listen address and a
// `printers:` list, each entry a device URI plus an optional driver
// name and infrastructure proxy binding (spec.md §6).
type configFile struct {
	IPP struct {
		Port int `yaml:"port"`
	} `yaml:"ipp"`

	Printers []struct {
		Name      string `yaml:"name"`
		DeviceURI string `yaml:"device_uri"`
		Driver    string `yaml:"driver"`
		ProxyURI  string `yaml:"proxy_uri"`
		ProxyUUID string `yaml:"proxy_uuid"`
	} `yaml:"printers"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func main() {
	configPath := flag.String("config", "/etc/ippframework/ippframework.yaml", "path to config file")
	ippPort := flag.Int("ipp-port", 0, "IPP server port (default: 8631)")
	deviceURI := flag.String("device-uri", "", "single-printer quick start: device URI")
	printerName := flag.String("printer-name", "printer", "single-printer quick start: printer name")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "log format: json, console")
	showVersion := flag.Bool("version", false, "show version and exit")
	listDevices := flag.Bool("list-devices", false, "run discovery once and print results")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ippframework version %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	config := daemon.DefaultConfig()

	if cfg, err := loadConfig(*configPath); err == nil {
		applyFileConfig(&config, cfg)
	} else if !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load config file: %v\n", err)
	}

	if *ippPort != 0 {
		config.IPPListenAddr = fmt.Sprintf(":%d", *ippPort)
	}
	if *deviceURI != "" {
		config.Printers = append(config.Printers, daemon.PrinterConfig{
			Name:      *printerName,
			DeviceURI: *deviceURI,
		})
	}

	level := zerolog.InfoLevel
	if *logLevel != "" {
		level = parseLogLevel(*logLevel)
	}
	zerolog.SetGlobalLevel(level)

	var log zerolog.Logger
	if *logFormat == "json" {
		log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}

	if *listDevices {
		listAvailableDevices(log)
		os.Exit(0)
	}

	d, err := daemon.New(config, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build daemon")
	}
	if err := d.Run(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("daemon failed")
	}
}

func loadConfig(path string) (*configFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func applyFileConfig(config *daemon.Config, cfg *configFile) {
	if cfg.IPP.Port != 0 {
		config.IPPListenAddr = fmt.Sprintf(":%d", cfg.IPP.Port)
	}
	for _, pc := range cfg.Printers {
		config.Printers = append(config.Printers, daemon.PrinterConfig{
			Name:      pc.Name,
			DeviceURI: pc.DeviceURI,
			Driver:    pc.Driver,
			ProxyURI:  pc.ProxyURI,
			ProxyUUID: pc.ProxyUUID,
		})
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// listAvailableDevices runs one discovery sweep and prints every device
// found, grounded on the teacher's listAvailablePrinters exit-path.
func listAvailableDevices(log zerolog.Logger) {
	reg := device.NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), daemon.PollTimeout())
	defer cancel()

	snmpRecs, dnssdRecs, err := discovery.Sweep(ctx, reg, daemon.PollTimeout())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: discovery sweep: %v\n", err)
	}

	if len(snmpRecs) == 0 && len(dnssdRecs) == 0 {
		fmt.Println("no devices found")
		return
	}

	fmt.Println("Available devices:")
	fmt.Println()
	for _, r := range snmpRecs {
		fmt.Printf("  snmp  %-10s %-30s %s\n", r.Address, r.DeviceID, r.URI)
	}
	for _, r := range dnssdRecs {
		fmt.Printf("  dnssd %-10s %-30s %s\n", r.ServiceName, r.DeviceID, r.FullName)
	}
}
