// Package main provides omnik-sim, a small inverter simulator that serves
// captured status payloads over HTTP and the raw status port. Useful for
// exercising the daemon without hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/resident-x/go-omnik/internal/protocol"
)

// Manifest describes what the simulator serves. Relative fixture paths are
// resolved against the manifest's directory.
type Manifest struct {
	HTTP struct {
		Port        int    `yaml:"port"`
		JavaScript  string `yaml:"javascript"`
		JSON        string `yaml:"json"`
		HTML        string `yaml:"html"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		ContentType struct {
			JavaScript string `yaml:"javascript"`
			JSON       string `yaml:"json"`
			HTML       string `yaml:"html"`
		} `yaml:"content_type"`
	} `yaml:"http"`

	TCP struct {
		Enabled      bool   `yaml:"enabled"`
		Port         int    `yaml:"port"`
		SerialNumber uint32 `yaml:"serial_number"`

		SerialText    string    `yaml:"serial_text"`
		Temperature   *float64  `yaml:"temperature"`
		DCVoltage     []float64 `yaml:"dc_voltage"`
		DCCurrent     []float64 `yaml:"dc_current"`
		ACVoltage     []float64 `yaml:"ac_voltage"`
		ACCurrent     []float64 `yaml:"ac_current"`
		ACFrequency   []float64 `yaml:"ac_frequency"`
		ACPower       []int     `yaml:"ac_power"`
		EnergyToday   float64   `yaml:"energy_today"`
		EnergyTotal   float64   `yaml:"energy_total"`
		HoursTotal    int       `yaml:"hours_total"`
		Active        *bool     `yaml:"active"`
		Firmware      string    `yaml:"firmware"`
		FirmwareSlave string    `yaml:"firmware_slave"`
	} `yaml:"tcp"`
}

func loadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	manifest := &Manifest{}
	if err := yaml.Unmarshal(raw, manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.HTTP.Port == 0 {
		manifest.HTTP.Port = 8080
	}
	if manifest.TCP.Port == 0 {
		manifest.TCP.Port = 8899
	}
	if manifest.HTTP.ContentType.JavaScript == "" {
		manifest.HTTP.ContentType.JavaScript = "application/x-javascript"
	}
	if manifest.HTTP.ContentType.JSON == "" {
		manifest.HTTP.ContentType.JSON = "application/json"
	}
	if manifest.HTTP.ContentType.HTML == "" {
		manifest.HTTP.ContentType.HTML = "text/html"
	}

	dir := filepath.Dir(path)
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	manifest.HTTP.JavaScript = resolve(manifest.HTTP.JavaScript)
	manifest.HTTP.JSON = resolve(manifest.HTTP.JSON)
	manifest.HTTP.HTML = resolve(manifest.HTTP.HTML)

	return manifest, nil
}

func main() {
	manifestPath := flag.String("manifest", "sim.yaml", "Path to the simulator manifest")
	flag.Parse()

	manifest, err := loadManifest(*manifestPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpServer := startHTTP(manifest)

	if manifest.TCP.Enabled {
		listener, err := startTCP(ctx, manifest)
		if err != nil {
			log.Fatalf("❌ Failed to start status port: %v", err)
		}
		defer listener.Close()
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	<-signalChan

	log.Println("🛑 Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}

// startHTTP serves the configured fixture files on the paths the web
// dataloggers use.
func startHTTP(manifest *Manifest) *http.Server {
	mux := http.NewServeMux()

	serve := func(path, fixture, contentType string) {
		if fixture == "" {
			return
		}
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if manifest.HTTP.Username != "" {
				user, pass, ok := r.BasicAuth()
				if !ok || user != manifest.HTTP.Username || pass != manifest.HTTP.Password {
					w.Header().Set("WWW-Authenticate", `Basic realm="simulator"`)
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
			}

			raw, err := os.ReadFile(fixture)
			if err != nil {
				log.Printf("Failed to read fixture %s: %v", fixture, err)
				http.Error(w, "fixture unavailable", http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", contentType)
			if _, err := w.Write(raw); err != nil {
				log.Printf("Failed to write response: %v", err)
			}
			log.Printf("📤 Served %s (%d bytes)", path, len(raw))
		})
	}

	serve("/js/status.js", manifest.HTTP.JavaScript, manifest.HTTP.ContentType.JavaScript)
	serve("/status.json", manifest.HTTP.JSON, manifest.HTTP.ContentType.JSON)
	serve("/status.html", manifest.HTTP.HTML, manifest.HTTP.ContentType.HTML)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", manifest.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🌐 HTTP simulator listening on :%d", manifest.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	return server
}

// startTCP answers every information request with one synthetic reply frame.
func startTCP(ctx context.Context, manifest *Manifest) (net.Listener, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", manifest.TCP.Port))
	if err != nil {
		return nil, err
	}

	reply := protocol.EncodeInformationReply(manifest.TCP.SerialNumber, protocol.ReplyTelemetry{
		SerialNumber:      manifest.TCP.SerialText,
		Temperature:       manifest.TCP.Temperature,
		DCInputVoltage:    manifest.TCP.DCVoltage,
		DCInputCurrent:    manifest.TCP.DCCurrent,
		ACOutputVoltage:   manifest.TCP.ACVoltage,
		ACOutputCurrent:   manifest.TCP.ACCurrent,
		ACOutputFrequency: manifest.TCP.ACFrequency,
		ACOutputPower:     manifest.TCP.ACPower,
		EnergyToday:       manifest.TCP.EnergyToday,
		EnergyTotal:       manifest.TCP.EnergyTotal,
		HoursTotal:        manifest.TCP.HoursTotal,
		Active:            manifest.TCP.Active,
		Firmware:          manifest.TCP.Firmware,
		FirmwareSlave:     manifest.TCP.FirmwareSlave,
	})

	go func() {
		log.Printf("🔌 Status port simulator listening on :%d", manifest.TCP.Port)
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					log.Printf("Accept error: %v", err)
					continue
				}
			}
			go handleTCPConn(conn, reply)
		}
	}()

	return listener, nil
}

func handleTCPConn(conn net.Conn, reply []byte) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	// The datalogger only replies after receiving the magic request.
	buf := make([]byte, 64)
	if _, err := conn.Read(buf); err != nil && err != io.EOF {
		log.Printf("Status port read error: %v", err)
		return
	}

	if _, err := conn.Write(reply); err != nil {
		log.Printf("Status port write error: %v", err)
		return
	}
	log.Printf("📤 Served information reply (%d bytes)", len(reply))
}
