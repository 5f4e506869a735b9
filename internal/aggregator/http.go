package aggregator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/nodestore"
	"github.com/vk/ensembleeval/internal/state"
)

// NodeResponse is the body of GET /node.
type NodeResponse struct {
	Address string       `json:"address"`
	Level   string       `json:"level"`
	Status  state.Status `json:"status"`
	Node    any          `json:"node"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctxlog.FromContext(r.Context()).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) iterationsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]int{"iterations": s.registry.Iterations()})
}

func (s *Server) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	_, store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, store.Snapshot(r.Context()))
}

func (s *Server) nodeHandler(w http.ResponseWriter, r *http.Request) {
	_, store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	addr, err := nodeid.Parse(r.URL.Query().Get("address"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	node, err := store.Query(r.Context(), addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	resp := NodeResponse{Address: addr.String(), Level: addr.Level().String(), Status: node.Status()}
	switch {
	case node.Job != nil:
		resp.Node = node.Job
	case node.Step != nil:
		resp.Node = node.Step
	case node.Stage != nil:
		resp.Node = node.Stage
	default:
		resp.Node = node.Realization
	}
	writeJSON(w, http.StatusOK, resp)
}

// storeFor resolves the iter query parameter, defaulting to 0, and writes
// an error response when there is no such iteration.
func (s *Server) storeFor(w http.ResponseWriter, r *http.Request) (int, nodestore.Store, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return 0, nil, false
	}
	iter := 0
	if raw := r.URL.Query().Get("iter"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid iter %q", raw), http.StatusBadRequest)
			return 0, nil, false
		}
		iter = n
	}
	store, ok := s.registry.Lookup(iter)
	if !ok {
		http.Error(w, fmt.Sprintf("no snapshot for iteration %d", iter), http.StatusNotFound)
		return 0, nil, false
	}
	return iter, store, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
