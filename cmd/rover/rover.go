package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/rover/internal/config"
	"github.com/banshee-data/rover/internal/hw"
	"github.com/banshee-data/rover/internal/monitoring"
	"github.com/banshee-data/rover/internal/nav"
	"github.com/banshee-data/rover/internal/rover"
	"github.com/banshee-data/rover/internal/serialmux"
	"github.com/banshee-data/rover/internal/telemetry"
	"github.com/banshee-data/rover/internal/timeutil"
	"github.com/banshee-data/rover/internal/version"
)

var (
	mode       = flag.String("mode", config.ModeGrid, "Navigation mode: grid or obstacle")
	devMode    = flag.Bool("dev", false, "Replay the embedded board fixture instead of opening the serial port")
	fixtures   = flag.String("fixtures", "", "Replay board lines from this file (implies -dev)")
	port       = flag.String("port", "/dev/ttyACM0", "Serial port of the I/O board (ignored in dev mode)")
	baud       = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	configFile = flag.String("config", "", "Robot configuration JSON (defaults built in when empty)")
	dbFile     = flag.String("db", "rover.db", "Telemetry database path (empty disables telemetry)")
	logFile    = flag.String("log", "rover.log", "Run log path (empty disables the run log)")
	listen     = flag.String("listen", ":8080", "Debug HTTP listen address (empty disables the server)")
	seed       = flag.Int64("seed", 0, "Seed for intersection choices (0 uses the clock)")
)

func loadConfig(path string) (*config.RobotConfig, error) {
	if path == "" {
		return config.EmptyRobotConfig(), nil
	}
	return config.LoadRobotConfig(path)
}

// loadFixture returns the replay lines: the file when one is given,
// otherwise the embedded fixture for mode.
func loadFixture(file, mode string) ([]string, error) {
	if file == "" {
		return serialmux.Fixture(mode)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	defer f.Close()
	return serialmux.LoadFixture(f)
}

func openLink(dev bool, fixtureFile, path, mode string, baud int) (*serialmux.SerialMux[serialmux.SerialPorter], error) {
	opts := serialmux.PortOptions{BaudRate: baud}
	if dev || fixtureFile != "" {
		lines, err := loadFixture(fixtureFile, mode)
		if err != nil {
			return nil, err
		}
		return serialmux.OpenSerialMux(&serialmux.ReplayPortFactory{Lines: lines}, "fixture:"+mode, opts)
	}
	return serialmux.NewRealSerialMux(path, opts)
}

func newNavigator(mode string, c *config.RobotConfig, seed int64, sig nav.Signals) (nav.Navigator, error) {
	switch mode {
	case config.ModeGrid:
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return nav.NewGridNavigator(c, rand.New(rand.NewSource(seed)), sig), nil
	case config.ModeObstacle:
		return nav.NewObstacleNavigator(c, sig), nil
	default:
		return nil, fmt.Errorf("unknown mode %q: expected %s or %s", mode, config.ModeGrid, config.ModeObstacle)
	}
}

// serveDebug serves h on ln until ctx is done. A serve failure calls cancel so
// the control loop stops through its normal shutdown.
func serveDebug(ctx context.Context, cancel context.CancelFunc, ln net.Listener, h http.Handler) {
	server := &http.Server{Handler: h}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("debug server failed, stopping run: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server routine stopped")
}

func main() {
	flag.Parse()

	if !config.ValidMode(*mode) {
		log.Fatalf("Invalid -mode %q: expected %s or %s", *mode, config.ModeGrid, config.ModeObstacle)
	}
	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Bind before the board is touched so a taken port fails at startup.
	var debugLn net.Listener
	if *listen != "" {
		debugLn, err = net.Listen("tcp", *listen)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", *listen, err)
		}
	}

	link, err := openLink(*devMode, *fixtures, *port, *mode, *baud)
	if err != nil {
		log.Fatalf("Failed to open board link: %v", err)
	}
	defer link.Close()
	if err := link.Initialize(); err != nil {
		log.Fatalf("Failed to initialize board link: %v", err)
	}

	clock := timeutil.RealClock{}
	opsOut, diagOut := io.Writer(os.Stderr), io.Writer(nil)
	if *logFile != "" {
		runLog, err := monitoring.OpenRunLog(*logFile, clock)
		if err != nil {
			log.Fatalf("Failed to open run log: %v", err)
		}
		defer runLog.Close()
		opsOut, diagOut = io.MultiWriter(os.Stderr, runLog), runLog
	}
	nav.SetLogWriters(opsOut, diagOut, nil)

	var db *telemetry.DB
	var rec *telemetry.Recorder
	if *dbFile != "" {
		db, err = telemetry.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open telemetry database: %v", err)
		}
		defer db.Close()
		run, err := db.StartRun(*mode, version.String(), clock.Now())
		if err != nil {
			log.Fatalf("Failed to start run: %v", err)
		}
		log.Printf("Recording run %s", run.ID)
		rec = telemetry.NewRecorder(db, run.ID, cfg.GetFlushEvery())
	}

	board := hw.NewBoard(link, hw.BoardConfigFromRobot(cfg), clock)
	beeper := hw.NewBeeper(board, cfg.GetBeepDuration())
	navigator, err := newNavigator(*mode, cfg, *seed, nav.Signals{LEDs: board, Beeper: beeper})
	if err != nil {
		log.Fatal(err)
	}

	runner, err := rover.NewRunner(rover.Options{
		Config:    rover.ConfigFromRobot(cfg, *mode),
		Navigator: navigator,
		Motors:    board,
		Sensors:   rover.Sensors{Line: board, Ranging: board, Proximity: board.Proximity()},
		Display:   board,
		LEDs:      board,
		Beeper:    beeper,
		Recorder:  rec,
		Clock:     clock,
	})
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}

	var wg sync.WaitGroup
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// serial I/O
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// board line decoding
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := board.Listen(ctx); err != nil && err != context.Canceled {
			log.Printf("board listener stopped: %v", err)
		}
		log.Print("board routine terminated")
	}()

	if err := board.Configure(); err != nil {
		log.Printf("failed to configure board sample rate: %v", err)
	}

	// control loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Starting %s navigation, version %s", *mode, version.String())
		if err := runner.Run(ctx); err != nil {
			log.Printf("control loop stopped: %v", err)
		}
		log.Print("control routine terminated")
	}()

	if debugLn != nil {
		mux := http.NewServeMux()
		link.AttachAdminRoutes(mux)
		runner.AttachAdminRoutes(mux)
		if db != nil {
			if err := db.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach telemetry routes: %v", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveDebug(ctx, cancel, debugLn, mux)
		}()
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
