// Package main implements the gones NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gones/internal/app"
	"gones/internal/version"
)

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file (optional for GUI mode)")
		configFile = flag.String("config", "", "Path to configuration file")
		debug      = flag.Bool("debug", false, "Enable debug mode")
		nogui      = flag.Bool("nogui", false, "Run without GUI (headless mode)")
		frames     = flag.Int("frames", 120, "Frames to run in headless mode before exiting")
		help       = flag.Bool("help", false, "Show help message")
		ver        = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}

	if *ver {
		version.PrintBuildInfo()
		os.Exit(0)
	}

	setupGracefulShutdown()

	configPath := *configFile
	if configPath == "" {
		configPath = app.GetDefaultConfigPath()
	}

	application, err := app.NewApplicationWithMode(configPath, *nogui)
	if err != nil {
		log.Fatalf("failed to create application: %v", err)
	}
	defer func() {
		if err := application.Cleanup(); err != nil {
			log.Printf("application cleanup error: %v", err)
		}
	}()

	if *nogui {
		application.GetConfig().Video.Backend = "headless"
	}

	if *debug {
		application.GetConfig().UpdateDebug(true, true, true)
		application.ApplyDebugSettings()
	}

	if *romFile != "" {
		if err := application.LoadROM(*romFile); err != nil {
			log.Fatalf("failed to load ROM %q: %v", *romFile, err)
		}
		if *debug {
			application.ApplyDebugSettings()
		}
	}

	if *nogui {
		if *romFile == "" {
			log.Fatal("-rom is required in headless mode")
		}
		runHeadlessMode(application, *frames)
	} else if err := runGUIMode(application); err != nil {
		log.Fatalf("GUI mode failed: %v", err)
	}
}

// runGUIMode starts the windowed application loop and reports session
// statistics once the window closes.
func runGUIMode(application *app.Application) error {
	config := application.GetConfig()
	w, h := config.GetWindowResolution()
	log.Printf("window %dx%d scale=%d audio=%s video=%s",
		w, h, config.Window.Scale, enabledString(config.Audio.Enabled), config.Video.Filter)

	if err := application.Run(); err != nil {
		return fmt.Errorf("application run failed: %w", err)
	}

	log.Printf("frames=%d uptime=%v fps=%.1f",
		application.GetFrameCount(), application.GetUptime(), application.GetFPS())
	return nil
}

// runHeadlessMode drives the bus directly for a fixed number of frames,
// used by CI and deterministic regression runs that have no window to drive.
func runHeadlessMode(application *app.Application, targetFrames int) {
	bus := application.GetBus()
	if bus == nil {
		log.Fatal("bus not initialized")
	}

	for frame := 0; frame < targetFrames; frame++ {
		bus.Frame()
	}
	log.Printf("headless run complete: %d frames", targetFrames)
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("interrupt received, shutting down")
		os.Exit(0)
	}()
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func printUsage() {
	fmt.Println("gones - Go NES Emulator")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  gones [options]                    # Start GUI mode without a ROM")
	fmt.Println("  gones -rom <file> [options]        # Start with a ROM loaded")
	fmt.Println("  gones -nogui -rom <file> [options] # Run headless for a fixed frame count")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS (default):")
	fmt.Println("  Arrow Keys / WASD  D-Pad")
	fmt.Println("  J / Z              A")
	fmt.Println("  K / X              B")
	fmt.Println("  Enter              Start")
	fmt.Println("  Space              Select")
	fmt.Println("  F1-F10             Save state")
	fmt.Println("  Shift+F1-F10       Load state")
	fmt.Println()
	fmt.Println("SUPPORTED FORMATS:")
	fmt.Println("  iNES 1.0, mapper 0 (NROM) only")
}
