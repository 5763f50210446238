// Command registryd runs the BrassMonkey device registry and relay
// server: the TCP protocol endpoint, the HTTP entitlement/metrics
// side-channel, and the optional telemetry/audit sinks.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brassmonkey/registryd/internal/acceptor"
	"github.com/brassmonkey/registryd/internal/audit"
	"github.com/brassmonkey/registryd/internal/config"
	"github.com/brassmonkey/registryd/internal/httpapi"
	"github.com/brassmonkey/registryd/internal/obslog"
	"github.com/brassmonkey/registryd/internal/registry"
	"github.com/brassmonkey/registryd/internal/relay"
	"github.com/brassmonkey/registryd/internal/telemetry"
)

var (
	configPath = flag.String("config", "", "Path to JSON configuration file (optional)")
	debug      = flag.Bool("d", false, "Enable debug-level logging")
	debugLong  = flag.Bool("debug", false, "Enable debug-level logging")
)

func main() {
	flag.Parse()
	debugFlag := *debug || *debugLong

	// The only command is "run"; a bare invocation means the same thing.
	if cmd := flag.Arg(0); cmd != "" && cmd != "run" {
		fmt.Fprintf(os.Stderr, "registryd: unknown command %q (usage: registryd [-d] [-config file] run)\n", cmd)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registryd: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(debugFlag); err != nil {
		fmt.Fprintf(os.Stderr, "registryd: %v\n", err)
		os.Exit(1)
	}

	logger := obslog.New(obslog.ParseLevel(cfg.LogLevel))
	if cfg.LogToFile && cfg.LogFilePath != "" {
		if err := logger.EnableFile(cfg.LogFilePath, int64(cfg.LogMaxSize), cfg.LogBackupCount); err != nil {
			fmt.Fprintf(os.Stderr, "registryd: %v\n", err)
			os.Exit(1)
		}
	}
	obslog.SetGlobal(logger)
	defer logger.Close()

	serverDeviceID := relay.GenerateServerDeviceID()
	obslog.Global().Info("registryd", "server device id %s", serverDeviceID)

	reg := registry.New()
	slots := registry.NewSlotAllocator()
	engine := relay.New(reg, slots, serverDeviceID, config.TCPHost, config.TCPPort)

	telemetrySink := telemetry.New(cfg.Telemetry)
	engine.AddObserver(telemetrySink)
	defer telemetrySink.Close()

	auditRecorder := audit.New(cfg.Audit)
	engine.AddObserver(auditRecorder)
	defer auditRecorder.Close()

	httpSrv := httpapi.New(reg, cfg.HTTPPort)
	if err := httpSrv.Start(); err != nil {
		obslog.Global().Error("registryd", "http server failed to start: %v", err)
		os.Exit(1)
	}

	acc := acceptor.New(engine, cfg)
	acceptDone := make(chan error, 1)
	go func() {
		acceptDone <- acc.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		obslog.Global().Info("registryd", "received %v, shutting down", sig)
	case err := <-acceptDone:
		if err != nil {
			obslog.Global().Error("registryd", "acceptor exited: %v", err)
			os.Exit(1)
		}
	}

	acc.Stop()
	httpSrv.Stop()
	obslog.Global().Info("registryd", "shutdown complete")
}
