package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/drivr"
	"github.com/loykin/drivr/pkg/client"
)

// manager is the part of drivr.Manager the commands use.
type manager interface {
	Start(ctx context.Context) (drivr.Handle, error)
	Stop(ctx context.Context) error
	Status(ctx context.Context) (drivr.Status, error)
	Session(ctx context.Context) (string, bool, error)
	ClearSession(ctx context.Context) error
	Connect(ctx context.Context) (*drivr.Driver, error)
	NewHTTPServer(addr, basePath string) (*http.Server, error)
	Close() error
}

type managerFunc func(configPath string) (manager, error)

func loadManager(configPath string) (manager, error) {
	cfg, err := drivr.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	m, err := drivr.New(cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

type command struct {
	open  managerFunc
	flags *GlobalFlags
}

func (c command) withManager(fn func(m manager) error) error {
	m, err := c.open(c.flags.ConfigPath)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return fn(m)
}

type sessionInfo struct {
	SessionID string `json:"session_id"`
	Recorded  bool   `json:"recorded"`
}

type statusOutput struct {
	Driver  drivr.Status `json:"driver"`
	Session sessionInfo  `json:"session"`
}

func cmdStart(ctx context.Context, m manager, out io.Writer) error {
	h, err := m.Start(ctx)
	if err != nil {
		return err
	}
	printJSON(out, h)
	return nil
}

func cmdStop(ctx context.Context, m manager, out io.Writer) error {
	if err := m.Stop(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "driver stopped")
	return nil
}

func cmdStatus(ctx context.Context, m manager, out io.Writer) error {
	st, err := m.Status(ctx)
	if err != nil {
		return err
	}
	id, ok, err := m.Session(ctx)
	if err != nil {
		return err
	}
	printJSON(out, statusOutput{Driver: st, Session: sessionInfo{SessionID: id, Recorded: ok}})
	return nil
}

type apiStatusOutput struct {
	Driver  client.DriverStatus `json:"driver"`
	Session client.Session      `json:"session"`
}

// statusViaAPI gets status using the daemon API
func statusViaAPI(ctx context.Context, api *client.Client, out io.Writer) error {
	st, err := api.Status(ctx)
	if err != nil {
		return err
	}
	s, err := api.Session(ctx)
	if err != nil {
		return err
	}
	printJSON(out, apiStatusOutput{Driver: st, Session: s})
	return nil
}

func cmdSessionShow(ctx context.Context, m manager, out io.Writer) error {
	id, ok, err := m.Session(ctx)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(out, "no session recorded")
		return nil
	}
	_, _ = fmt.Fprintln(out, id)
	return nil
}

func cmdSessionClear(ctx context.Context, m manager, out io.Writer) error {
	if err := m.ClearSession(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "session record cleared")
	return nil
}

type openOutput struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Loaded    bool   `json:"loaded"`
}

func cmdOpen(ctx context.Context, m manager, f OpenFlags, out io.Writer) error {
	drv, err := m.Connect(ctx)
	if err != nil {
		return err
	}
	loaded, err := drv.Navigate(f.URL, f.Refresh)
	if err != nil {
		return err
	}
	loc, err := drv.Location()
	if err != nil {
		return err
	}
	printJSON(out, openOutput{SessionID: drv.SessionID(), URL: loc, Loaded: loaded})
	return nil
}

func cmdText(ctx context.Context, m manager, f TextFlags, out io.Writer) error {
	drv, err := m.Connect(ctx)
	if err != nil {
		return err
	}
	var text string
	read := func() error {
		var err error
		if f.Attribute != "" {
			text, err = drv.ReadAttribute(f.XPath, f.Attribute)
		} else {
			text, err = drv.ReadText(f.XPath)
		}
		return err
	}
	if f.URL != "" {
		err = drv.Visit(f.URL, drivr.VisitOptions{}, read)
	} else {
		err = read()
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, text)
	return nil
}

// cmdShutdown quits the recorded session before stopping the driver. Without a record
// there is no session to attach to and only the driver is stopped.
func cmdShutdown(ctx context.Context, m manager, out io.Writer) error {
	if _, ok, err := m.Session(ctx); err != nil {
		return err
	} else if !ok {
		return cmdStop(ctx, m, out)
	}
	drv, err := m.Connect(ctx)
	if err != nil {
		return err
	}
	if err := drv.Shutdown(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "session ended and driver stopped")
	return nil
}

func runServe(m manager, f ServeFlags, out io.Writer) error {
	if err := drivr.RegisterMetricsDefault(); err != nil {
		_, _ = fmt.Fprintf(out, "Warning: failed to register metrics: %v\n", err)
	}
	if f.MetricsListen != "" {
		go func() {
			if err := drivr.ServeMetrics(f.MetricsListen); err != nil && err != http.ErrServerClosed {
				_, _ = fmt.Fprintf(os.Stderr, "Metrics server error: %v\n", err)
			}
		}()
	}
	server, err := m.NewHTTPServer(f.Listen, f.BasePath)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Starting drivr HTTP server on %s\n", server.Addr)
	if f.NonBlocking {
		return server.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_, _ = fmt.Fprintln(out, "Shutting down...")
	return server.Close()
}
