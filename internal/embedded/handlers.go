package embedded

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/minicass/internal/storage"
)

// Info is the body of GET /info on the native port.
type Info struct {
	ClusterName string             `json:"cluster_name"`
	Address     string             `json:"address"`
	NativePort  int                `json:"native_port"`
	StoragePort int                `json:"storage_port"`
	Tokens      int                `json:"tokens"`
	Seeds       []string           `json:"seeds"`
	Store       storage.StoreStats `json:"store"`
	Uptime      string             `json:"uptime"`
}

// Peer is the body of GET /peer on the storage port.
type Peer struct {
	ClusterName string   `json:"cluster_name"`
	Address     string   `json:"address"`
	Seeds       []string `json:"seeds"`
}

func (s *Service) nativeRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/store", s.handleStore)
	mux.HandleFunc("/store/", s.handleStore)
	return mux
}

func (s *Service) peerRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/peer", s.handlePeer)
	return mux
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := s.store.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, Info{
		ClusterName: s.settings.ClusterName,
		Address:     s.settings.ListenAddress,
		NativePort:  s.settings.NativePort,
		StoragePort: s.settings.StoragePort,
		Tokens:      s.settings.NumTokens,
		Seeds:       s.settings.Seeds(),
		Store:       stats,
		Uptime:      time.Since(s.startedAt).Round(time.Millisecond).String(),
	})
}

func (s *Service) handlePeer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, Peer{
		ClusterName: s.settings.ClusterName,
		Address:     s.settings.ListenAddress,
		Seeds:       s.settings.Seeds(),
	})
}

// handleStore routes /store and /store/{key}.
func (s *Service) handleStore(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/store"), "/")
	if key == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleListKeys(w)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(key, w)
	case http.MethodPut:
		s.handlePut(key, w, r)
	case http.MethodDelete:
		s.handleDelete(key, w)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Service) handleGet(key string, w http.ResponseWriter) {
	value, err := s.store.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(value); err != nil {
		s.log.WithError(err).Debug("write response")
	}
}

func (s *Service) handlePut(key string, w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	if err := s.store.Put(key, buf.Bytes()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDelete(key string, w http.ResponseWriter) {
	if err := s.store.Delete(key); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleListKeys(w http.ResponseWriter) {
	keys, err := s.store.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, struct {
		Keys  []string `json:"keys"`
		Count int      `json:"count"`
	}{
		Keys:  keys,
		Count: len(keys),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
