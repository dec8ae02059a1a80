// Package embedded runs an in-process stand-in for a data-store node. It
// reads the node's generated configuration file, keeps its data in the
// node's data and commit log directories, and answers on the node's native
// and storage ports so that readiness probing and seed discovery behave as
// they would against real nodes.
package embedded

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/minicass/internal/storage"
)

// Service is one embedded node. Create it with New, then Start it; it runs
// until Shutdown or until one of its listeners fails.
type Service struct {
	settings Settings
	log      *logrus.Entry

	store  storage.Store
	native *http.Server
	peer   *http.Server

	startedAt time.Time
	stopping  chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	err       error
}

// New prepares a service for settings. Nothing is opened until Start.
func New(settings Settings, log *logrus.Entry) *Service {
	return &Service{
		settings: settings,
		log: log.WithFields(logrus.Fields{
			"component": "embedded",
			"address":   settings.ListenAddress,
		}),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start opens the store and binds both listeners before returning, so a
// port conflict is reported here rather than later. Serving continues in
// the background.
func (s *Service) Start() error {
	store, err := s.openStore()
	if err != nil {
		return err
	}

	nativeLn, err := net.Listen("tcp", s.addr(s.settings.NativePort))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("bind native port: %w", err)
	}
	var peerLn net.Listener
	if s.settings.StoragePort > 0 {
		peerLn, err = net.Listen("tcp", s.addr(s.settings.StoragePort))
		if err != nil {
			_ = nativeLn.Close()
			_ = store.Close()
			return fmt.Errorf("bind storage port: %w", err)
		}
	}

	s.store = store
	s.startedAt = time.Now()
	s.native = &http.Server{Handler: s.nativeRoutes(), ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error { return serve(s.native, nativeLn) })
	if peerLn != nil {
		s.peer = &http.Server{Handler: s.peerRoutes(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error { return serve(s.peer, peerLn) })
	}
	// one failed listener takes the whole node down
	g.Go(func() error {
		select {
		case <-ctx.Done():
			s.closeServers(context.Background())
		case <-s.stopping:
		}
		return nil
	})

	go func() {
		err := g.Wait()
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
		s.err = err
		if err != nil {
			s.log.WithError(err).Error("node stopped with error")
		} else {
			s.log.Info("node stopped")
		}
		close(s.done)
	}()

	s.log.WithFields(logrus.Fields{
		"native_port":  s.settings.NativePort,
		"storage_port": s.settings.StoragePort,
		"data_dir":     s.settings.DataDir(),
	}).Info("node started")
	return nil
}

func (s *Service) openStore() (storage.Store, error) {
	dir := s.settings.DataDir()
	if dir == "" {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.OpenBadger(dir, s.settings.CommitLogDir, s.log.WithField("component", "badger"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func (s *Service) addr(port int) string {
	return net.JoinHostPort(s.settings.ListenAddress, strconv.Itoa(port))
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) closeServers(ctx context.Context) {
	if err := s.native.Shutdown(ctx); err != nil {
		s.log.WithError(err).Warn("native listener shutdown")
	}
	if s.peer != nil {
		if err := s.peer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("storage listener shutdown")
		}
	}
}

// Done is closed once the service has fully stopped.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the service stopped with. Only valid after Done.
func (s *Service) Err() error {
	return s.err
}

// Shutdown stops both listeners, waits for in-flight requests and closes the
// store. It is safe to call more than once.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.native == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		close(s.stopping)
		s.closeServers(ctx)
	})
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settings returns the configuration the service was created with.
func (s *Service) Settings() Settings {
	return s.settings
}
