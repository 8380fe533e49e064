// Command door-sensor watches a hall-effect door switch and reports each
// opening and closing to a remote listener over a persistent stream.
//
// The process does not retry anything: if the network cannot be brought up,
// the listener cannot be reached, or a write fails, it exits non-zero and
// the supervisor restarts it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/door-sensor/internal/config"
	"github.com/sweeney/door-sensor/internal/gpio"
	"github.com/sweeney/door-sensor/internal/logic"
	"github.com/sweeney/door-sensor/internal/notify"
	"github.com/sweeney/door-sensor/internal/status"
	"github.com/sweeney/door-sensor/internal/stream"
	"github.com/sweeney/door-sensor/internal/web"
	"github.com/sweeney/door-sensor/internal/wifi"
)

// Boot constants, set at build time:
//
//	go build -ldflags "-X main.wifiSSID=HomeNet -X main.wifiPassphrase=... -X main.serverEndpoint=10.0.0.2:9000"
var (
	wifiSSID       string
	wifiPassphrase string
	serverEndpoint string
)

type options struct {
	configPath string
	printState bool
}

func main() {
	cfg, opts, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("fatal: %v", err)
	}

	if err := run(cfg, opts.printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newFlagSet(cfg *config.Config) (*pflag.FlagSet, *options) {
	opts := &options{}
	fs := pflag.NewFlagSet("door-sensor", pflag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "YAML config file (overlaid on built-in defaults)")
	fs.BoolVar(&opts.printState, "print-state", false, "Print current door state and exit")
	fs.StringVar(&cfg.Wifi.SSID, "ssid", cfg.Wifi.SSID, "WiFi network name")
	fs.StringVar(&cfg.Wifi.Interface, "interface", cfg.Wifi.Interface, "WiFi network interface")
	fs.BoolVar(&cfg.Wifi.Skip, "skip-wifi", cfg.Wifi.Skip, "Assume the platform has already brought the network up")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Listener address (host:port, tcp://host:port or mqtt://host:port)")
	fs.StringVar(&cfg.MQTTTopic, "mqtt-topic", cfg.MQTTTopic, "Topic for mqtt:// endpoints")
	fs.StringVar(&cfg.GPIO.Chip, "chip", cfg.GPIO.Chip, "GPIO chip")
	fs.IntVar(&cfg.GPIO.Pin, "pin", cfg.GPIO.Pin, "BCM pin number of the hall sensor")
	fs.BoolVar(&cfg.GPIO.AssumeClosed, "assume-closed", cfg.GPIO.AssumeClosed, "Skip the startup read and assume the door is closed")
	fs.DurationVar(&cfg.Poll, "poll", cfg.Poll, "GPIO polling interval")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status address (empty to disable)")
	return fs, opts
}

// loadConfig layers built-in defaults, then the config file, then flags.
func loadConfig(args []string) (*config.Config, *options, error) {
	cfg := config.Default(wifiSSID, wifiPassphrase, serverEndpoint)
	fs, opts := newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if opts.configPath == "" {
		return cfg, opts, nil
	}

	// Reparse so flags win over the file.
	cfg = config.Default(wifiSSID, wifiPassphrase, serverEndpoint)
	if err := config.Load(opts.configPath, cfg); err != nil {
		return nil, nil, err
	}
	fs, opts = newFlagSet(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return cfg, opts, nil
}

func run(cfg *config.Config, printState bool) error {
	// Initialize GPIO
	gpioReader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.Pin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer gpioReader.Close()

	// Print state mode
	if printState {
		open, err := gpioReader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("door: %s\n", logic.StateFromLevel(open))
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:   cfg.Poll.Milliseconds(),
		Pin:      cfg.GPIO.Pin,
		Endpoint: cfg.Endpoint,
		HTTPAddr: cfg.HTTPAddr,
	})

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Bring-up is interruptible; the loop itself watches sigCh.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	radio := wifi.NewLinuxRadio(wifi.LinuxRadioConfig{
		Interface:        cfg.Wifi.Interface,
		ControlDir:       cfg.Wifi.ControlDir,
		AssociateTimeout: cfg.Wifi.AssociateTimeout,
		AddressTimeout:   cfg.Wifi.AddressTimeout,
	})
	n, err := bringUp(ctx, cfg, radio, stream.Dial, tracker)
	if err != nil {
		return err
	}
	defer n.Close()

	log.Printf("started: pin=%d poll=%v endpoint=%s", cfg.GPIO.Pin, cfg.Poll, cfg.Endpoint)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	notifier := &notify.Notifier{
		Reader:       gpioReader,
		Stream:       n.stream,
		Status:       tracker,
		AssumeClosed: cfg.GPIO.AssumeClosed,
	}
	if err := notifier.Run(ticker.C, sigCh); err != nil {
		tracker.SetStreamConnected(false)
		return err
	}
	return nil
}

// node holds the long-lived handles. Both are kept until the process exits:
// closing the session drops the network, closing the stream ends reporting.
type node struct {
	session *wifi.Session // nil when the platform owns the network
	stream  io.WriteCloser
}

func (n *node) Close() {
	if err := n.stream.Close(); err != nil {
		log.Printf("stream close: %v", err)
	}
	if n.session != nil {
		if err := n.session.Close(); err != nil {
			log.Printf("wifi close: %v", err)
		}
	}
}

type dialFunc func(ctx context.Context, endpoint string, opts stream.Options) (io.WriteCloser, error)

// bringUp establishes connectivity and opens the stream. Any failure is
// terminal; nothing is retried.
func bringUp(ctx context.Context, cfg *config.Config, radio wifi.Radio, dial dialFunc, tracker *status.Tracker) (*node, error) {
	n := &node{}

	if cfg.Wifi.Skip {
		log.Printf("wifi: skipped, network managed by the platform")
		tracker.SetWifiStep("skipped")
	} else {
		est := wifi.NewEstablisher(radio)
		est.OnStep(func(s wifi.Step) { tracker.SetWifiStep(s.String()) })

		sess, err := est.Establish(ctx, wifi.Credentials{
			SSID:       cfg.Wifi.SSID,
			Passphrase: cfg.Wifi.Passphrase,
			Auth:       wifi.AuthWPA2Personal,
		})
		if err != nil {
			return nil, err
		}
		n.session = sess
		tracker.SetNetwork(&status.NetworkInfo{
			Interface: sess.Interface,
			SSID:      sess.SSID,
			IP:        sess.Addr.String(),
			Since:     sess.Established,
		})
	}

	s, err := dial(ctx, cfg.Endpoint, stream.Options{
		DialTimeout: cfg.DialTimeout,
		Topic:       cfg.MQTTTopic,
	})
	if err != nil {
		if n.session != nil {
			n.session.Close()
		}
		return nil, err
	}
	n.stream = s
	tracker.SetStreamConnected(true)
	log.Printf("stream: connected to %s", cfg.Endpoint)

	return n, nil
}
