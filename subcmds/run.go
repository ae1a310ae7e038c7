// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/buybot/ctxutil"
	"github.com/bvk/buybot/daemonize"
	"github.com/bvk/buybot/httputil"
	"github.com/bvk/buybot/server"
	"github.com/bvk/buybot/subcmds/cmdutil"
	"github.com/bvk/buybot/venue"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/shopspring/decimal"
	"github.com/visvasity/cli"
	"github.com/visvasity/sglog"
)

type Run struct {
	cmdutil.ServerFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	noPprof  bool
	noResume bool

	secretsPath string
	dataDir     string

	bridgeURL string

	simulate      bool
	simulatePrice float64
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.BoolVar(&c.noPprof, "no-pprof", false, "when true net/http/pprof handler is not registered")
	fset.BoolVar(&c.noResume, "no-resume", false, "when true monitoring isn't resumed automatically")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to credentials file")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	fset.StringVar(&c.bridgeURL, "bridge-url", "http://127.0.0.1:18081", "base url for the purchase bridge endpoint")
	fset.BoolVar(&c.simulate, "simulate", false, "when true a simulated venue is used instead of the bridge")
	fset.Float64Var(&c.simulatePrice, "simulate-price", 100, "fixed price reported by the simulated venue")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Purpose() string {
	return "Runs the purchase bot daemon in foreground or background"
}

func (c *Run) Description() string {
	return `

Command "run" starts the purchase bot daemon. The daemon watches the market
price at the configured interval and executes pending orders whose target
price is met, within the configured budget. When monitoring was active before
the last shutdown it resumes automatically.

SECRETS FILE

The purchase bridge requires API keys for authentication. Users are expected
to create a secrets file with the API keys in JSON format, typically through
the "setup" subcommands. An example secrets file format is given below:

    {
        "bridge":{
            "key":"111111111",
            "secret":"2222222222"
        }
    }

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".buybot")
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}
	secrets, err := server.SecretsFromFile(c.secretsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		secrets = new(server.Secrets)
	}

	if ip := net.ParseIP(c.IP); ip == nil {
		return fmt.Errorf("invalid ip address")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid port number")
	}
	addr := &net.TCPAddr{
		IP:   net.ParseIP(c.IP),
		Port: c.Port,
	}

	// Health checker for the background process initialization. We need to
	// verify that the responding http server is really our child and not an
	// older instance.
	check := func(ctx context.Context, child *os.Process) (bool, error) {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/pid", addr.String()))
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return true, fmt.Errorf("http status: %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return true, err
		}
		if pid := string(data); pid != fmt.Sprintf("%d", child.Pid) {
			if !c.restart {
				return false, fmt.Errorf("is another instance already running? pid mismatch: want %d got %s", child.Pid, pid)
			}
			return true, fmt.Errorf("is another instance already running? pid mismatch: want %d got %s", child.Pid, pid)
		}
		return false, nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, "BUYBOT_DAEMONIZE", check); err != nil {
			return err
		}

		// The daemon has no terminal; write logs to rotating files.
		logBackend := sglog.NewBackend(&sglog.Options{
			LogDirs: []string{filepath.Join(dataDir, "logs")},
		})
		defer logBackend.Close()
		slog.SetDefault(slog.New(logBackend.Handler()))
	}

	log.SetFlags(log.Flags() | log.Lmicroseconds)
	log.Printf("using data directory %s and secrets file %s", dataDir, c.secretsPath)

	lockPath := filepath.Join(dataDir, "buybot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			log.Printf("waiting for the previous instance to shutdown")
			if err := ctxutil.RetryTimeout(ctx, time.Second, c.shutdownTimeout, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	// Start HTTP server.
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return err
	}
	defer s.Close()

	tcpServer, err := s.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start http server on %s: %w", addr, err)
	}
	defer s.Stop(tcpServer)

	if !c.noPprof {
		s.AddHandler("/debug/pprof/heap", pprof.Handler("heap"))
		s.AddHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		s.AddHandler("/debug/pprof/allocs", pprof.Handler("allocs"))
		s.AddHandler("/debug/pprof/block", pprof.Handler("block"))
		s.AddHandler("/debug/pprof/mutex", pprof.Handler("mutex"))
	}

	// Open the database.
	bopts := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	bdb, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("could not open the database: %w", err)
	}
	defer bdb.Close()
	db := kvbadger.New(bdb, isGoodKey)

	s.AddHandler("/db/", http.StripPrefix("/db", kvhttp.Handler(db)))

	// Create the venue driver.
	var driver venue.Driver
	if c.simulate {
		price := decimal.NewFromFloat(c.simulatePrice)
		log.Printf("using a simulated venue with fixed price %s", price)
		driver = venue.NewFake(price)
	} else {
		if secrets.Bridge == nil {
			return fmt.Errorf(`bridge keys are not configured; run "buybot setup bridge" first`)
		}
		baseURL, err := url.Parse(c.bridgeURL)
		if err != nil {
			return fmt.Errorf("could not parse bridge url %q: %w", c.bridgeURL, err)
		}
		bridge, err := venue.NewBridge(baseURL, secrets.Bridge, nil /* opts */)
		if err != nil {
			return fmt.Errorf("could not create bridge client: %w", err)
		}
		defer bridge.Close()
		driver = bridge
	}

	// Start the daemon service.
	sopts := &server.Options{
		NoResume: c.noResume,
	}
	svc, err := server.New(ctx, db, driver, secrets, sopts)
	if err != nil {
		return err
	}
	defer svc.Close()

	// Add the api handlers.
	apiMap := svc.HandlerMap()
	for k, v := range apiMap {
		s.AddHandler(k, v)
	}
	defer func() {
		for k := range apiMap {
			s.RemoveHandler(k)
		}
	}()

	log.Printf("started buybot server at %s", addr)
	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	}))

	<-ctx.Done()
	log.Printf("buybot server is shutting down")
	return nil
}

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}
