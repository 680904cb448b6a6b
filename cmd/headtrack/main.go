package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/headtrack/internal/config"
	"github.com/banshee-data/headtrack/internal/filter"
	"github.com/banshee-data/headtrack/internal/pipeline"
	"github.com/banshee-data/headtrack/internal/protocol"
	"github.com/banshee-data/headtrack/internal/tracker"
	"github.com/banshee-data/headtrack/internal/tracklog"
	"github.com/banshee-data/headtrack/internal/version"
)

var (
	configPath   = flag.String("config", "", "Settings file, .json or .yaml (defaults apply when empty)")
	source       = flag.String("tracker", "udp", "Tracker: udp, serial, pcap or synthetic")
	trackerAddr  = flag.String("tracker-listen", "127.0.0.1:4242", "UDP tracker listen address")
	serialPort   = flag.String("serial-port", "/dev/ttyACM0", "Serial tracker device")
	serialBaud   = flag.Int("serial-baud", 115200, "Serial tracker baud rate")
	deviceCenter = flag.Bool("serial-device-center", false, "Ask the serial device to re-zero on center")
	pcapFile     = flag.String("pcap", "", "pcap file for the pcap tracker")
	pcapPort     = flag.Int("pcap-port", 4242, "UDP destination port to replay from the pcap file (0 for any)")
	pcapLoop     = flag.Bool("pcap-loop", false, "Loop the pcap file")
	outputAddr   = flag.String("output", "", "Send poses as UDP datagrams to host:port")
	csvPath      = flag.String("track-csv", "", "Write a per-cycle CSV track log")
	dbPath       = flag.String("track-db", "", "Record sessions to this SQLite database")
	sessionLabel = flag.String("session-label", "", "Label stored with the recorded session")
	listen       = flag.String("listen", "localhost:8089", "Admin HTTP listen address (empty disables)")
	debugLog     = flag.Bool("debug", false, "Enable diagnostic pipeline logging")
	traceLog     = flag.Bool("trace", false, "Enable per-cycle trace logging")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// startable is implemented by trackers with a background receiver.
type startable interface {
	Start(ctx context.Context) error
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	log.Print(version.String())

	var diag, trace io.Writer = io.Discard, io.Discard
	if *debugLog || *traceLog {
		diag = os.Stderr
	}
	if *traceLog {
		trace = os.Stderr
	}
	pipeline.SetLogWriters(os.Stderr, diag, trace)

	settings := &config.Settings{}
	if *configPath != "" {
		var err error
		settings, err = config.LoadSettings(*configPath)
		if err != nil {
			log.Fatalf("failed to load settings: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trk, err := newTracker()
	if err != nil {
		log.Fatalf("failed to create tracker: %v", err)
	}

	var wg sync.WaitGroup
	if s, ok := trk.(startable); ok {
		if err := s.Start(ctx); err != nil {
			log.Fatalf("failed to start tracker: %v", err)
		}
	}
	if s, ok := trk.(*tracker.Serial); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("serial tracker stopped: %v", err)
			}
		}()
	}

	libs := pipeline.Libraries{Tracker: trk, Protocol: protocol.Nop{}}
	if settings.FilterEnabled() {
		ta, ra := settings.GetFilterAlphas()
		ema, err := filter.NewEMA(ta, ra)
		if err != nil {
			log.Fatalf("failed to create filter: %v", err)
		}
		libs.Filter = ema
	}

	var output *protocol.UDP
	if *outputAddr != "" {
		output, err = protocol.DialUDP(*outputAddr)
		if err != nil {
			log.Fatalf("failed to open output: %v", err)
		}
		libs.Protocol = output
	}

	var loggers tracklog.Multi
	var csvLog *tracklog.CSV
	if *csvPath != "" {
		csvLog, err = tracklog.CreateCSV(*csvPath)
		if err != nil {
			log.Fatalf("failed to open track log: %v", err)
		}
		loggers = append(loggers, csvLog)
	}
	var recorder *tracklog.Recorder
	if *dbPath != "" {
		recorder, err = tracklog.OpenRecorder(*dbPath, tracklog.RecorderOptions{Label: *sessionLabel})
		if err != nil {
			log.Fatalf("failed to open track database: %v", err)
		}
		loggers = append(loggers, recorder)
	}
	var trackLog pipeline.TrackLogger
	if len(loggers) > 0 {
		trackLog = loggers
	}

	p := pipeline.New(settings.MappingTable(), libs, nil, trackLog, settings.PipelineSettings())
	p.Start()

	if *listen != "" {
		mux := http.NewServeMux()
		p.AttachAdminRoutes(mux)
		attachStatsRoute(mux, statsSources{tracker: trk, output: output, recorder: recorder})
		if recorder != nil {
			if err := recorder.AttachAdminRoutes(mux); err != nil {
				log.Fatalf("failed to attach recorder routes: %v", err)
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			serveAdmin(ctx, *listen, mux)
		}()
	}

	<-ctx.Done()
	log.Print("shutting down...")

	// the pipeline sends a neutral pose on exit; stop it before closing
	// the output
	p.Stop()
	if output != nil {
		if err := output.Close(); err != nil {
			log.Printf("output close error: %v", err)
		}
	}
	if csvLog != nil {
		if err := csvLog.Close(); err != nil {
			log.Printf("track log close error: %v", err)
		}
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			log.Printf("track database close error: %v", err)
		}
	}

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

func newTracker() (pipeline.Tracker, error) {
	switch *source {
	case "udp":
		return tracker.NewUDP(tracker.UDPConfig{Address: *trackerAddr, RcvBuf: 1 << 16}), nil
	case "serial":
		port, err := tracker.OpenSerialPort(*serialPort, tracker.PortOptions{BaudRate: *serialBaud})
		if err != nil {
			return nil, err
		}
		return tracker.NewSerial(port, *deviceCenter), nil
	case "pcap":
		if *pcapFile == "" {
			return nil, fmt.Errorf("-pcap is required for the pcap tracker")
		}
		return tracker.NewReplay(tracker.ReplayConfig{
			Path:     *pcapFile,
			Port:     *pcapPort,
			Realtime: true,
			Loop:     *pcapLoop,
		}), nil
	case "synthetic":
		return tracker.NewSynthetic(nil), nil
	}
	return nil, fmt.Errorf("unknown tracker %q", *source)
}

func serveAdmin(ctx context.Context, addr string, mux *http.ServeMux) {
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start admin server: %v", err)
		}
	}()
	log.Printf("admin routes on http://%s/debug/", addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("admin server shutdown error: %v", err)
		server.Close()
	}
}
