package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/yllada/vpn-settings/common"
	"github.com/yllada/vpn-settings/config"
	"github.com/yllada/vpn-settings/connman"
	"github.com/yllada/vpn-settings/provisioning"
	"github.com/yllada/vpn-settings/storage"
	"github.com/yllada/vpn-settings/vpn"
)

// quietConsole keeps log lines off the terminal for full-screen commands.
var quietConsole bool

// session is a running model connected to connman.
type session struct {
	cfg    *config.Config
	client *connman.Client
	model  *vpn.Model
	cancel context.CancelFunc
	done   chan struct{}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if err := common.InitLogger(common.LogConfig{
		Level:      level,
		JSON:       cfg.LogJSON,
		Quiet:      quietConsole,
		EnableFile: true,
	}); err != nil {
		common.LogWarn("file logging unavailable", "error", err)
	}
	return cfg, nil
}

// newModel builds a model over manager without starting it.
func newModel(cfg *config.Config, manager vpn.Manager) *vpn.Model {
	return vpn.NewModel(vpn.Options{
		Manager:     manager,
		Tokens:      storage.NewTokenRepository(cfg.TokenDir, common.Named("tokens")),
		Credentials: storage.NewCredentialRepository(cfg.CredentialsDir, common.Named("credentials")),
		Importer:    provisioning.NewImporter(cfg.ProvisioningDir, common.Named("provisioning")),
		Logger:      common.Named("model"),
	})
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	client, err := connman.Dial(cfg.Bus, cfg.Service, common.Named("connman"))
	if err != nil {
		common.CloseLogger()
		return nil, err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	s := &session{
		cfg:    cfg,
		client: client,
		model:  newModel(cfg, vpn.NewConnmanManager(client)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		s.model.Run(ctx)
	}()

	if err := waitUntil(ctx, s.model, common.PopulateTimeout, s.model.Populated); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: no connection list from %s", common.ErrServiceUnavailable, cfg.Service)
	}
	return s, nil
}

// Close waits for outstanding remote calls and stops the model.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), common.ConnectionTimeout)
	if err := s.model.WaitIdle(ctx); err != nil {
		common.LogDebug("remote calls still pending at exit", "error", err)
	}
	cancel()

	s.cancel()
	<-s.done
	if err := s.client.Close(); err != nil {
		common.LogDebug("error closing connman client", "error", err)
	}
	common.CloseLogger()
}

// find resolves a connection by path, name, or case-insensitive name.
func (s *session) find(nameOrPath string) (vpn.Record, error) {
	if rec, ok := s.model.Lookup(nameOrPath); ok {
		return rec, nil
	}
	want := strings.ToLower(strings.TrimSpace(nameOrPath))
	for _, rec := range s.model.Connections() {
		if strings.ToLower(rec.Name) == want {
			return rec, nil
		}
	}
	return vpn.Record{}, fmt.Errorf("%w: %s", common.ErrUnknownConnection, nameOrPath)
}

// waitUntil blocks until cond holds, re-checking after every model event.
func waitUntil(ctx context.Context, model *vpn.Model, timeout time.Duration, cond func() bool) error {
	notify := make(chan struct{}, 1)
	cancel := model.Subscribe(func(vpn.Event) {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if cond() {
			return nil
		}
		select {
		case <-notify:
		case <-deadline.C:
			return fmt.Errorf("timed out after %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// subscriber is the part of vpn.Model awaitState needs.
type subscriber interface {
	Subscribe(fn func(vpn.Event)) (cancel func())
}

// awaitState runs request and waits until the connection at path reports a
// state accepted by done. Only states reported after the request count, so a
// Failure left over from an earlier attempt is not taken as the outcome.
func awaitState(ctx context.Context, model subscriber, path string, timeout time.Duration, request func() error, done func(vpn.ConnectionState) bool) (vpn.ConnectionState, error) {
	var (
		mu      sync.Mutex
		latest  vpn.ConnectionState
		seen    bool
		removed bool
	)
	notify := make(chan struct{}, 1)
	cancel := model.Subscribe(func(e vpn.Event) {
		mu.Lock()
		defer mu.Unlock()
		switch e := e.(type) {
		case vpn.ConnectionStateChanged:
			if e.Path != path {
				return
			}
			latest, seen = e.State, true
		case vpn.ConnectionRemoved:
			if e.Path != path {
				return
			}
			removed = true
		default:
			return
		}
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	defer cancel()

	if err := request(); err != nil {
		return vpn.StateIdle, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-notify:
			mu.Lock()
			state, ok, gone := latest, seen, removed
			mu.Unlock()
			if gone {
				return state, fmt.Errorf("%w: %s was removed", common.ErrUnknownConnection, path)
			}
			if ok && done(state) {
				return state, nil
			}
		case <-deadline.C:
			return latest, fmt.Errorf("timed out after %s", timeout)
		case <-ctx.Done():
			return latest, ctx.Err()
		}
	}
}
