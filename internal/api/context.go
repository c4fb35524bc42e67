package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/presence-core/internal/raddec"
)

// defaultContextDepth is used when no depth parameter is given.
const defaultContextDepth = 1

// handleContext returns the proximity graph of every live device, or of the
// devices listed in the signatures parameter.
//
// Query parameters:
//   - signatures: comma-separated device signatures (id/type)
//   - depth: traversal depth; values above 1 are served as 1
func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	depth, ok := parseDepth(w, r)
	if !ok {
		return
	}

	var signatures []string
	if sigStr := r.URL.Query().Get("signatures"); sigStr != "" {
		for sig := range strings.SplitSeq(sigStr, ",") {
			sig = strings.TrimSpace(sig)
			if _, _, err := raddec.ParseSignature(sig); err != nil {
				writeBadRequest(w, "invalid device signature: "+sig)
				return
			}
			signatures = append(signatures, sig)
		}
	}

	devices := s.store.RetrieveContext(signatures, depth)
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

// handleDeviceContext returns the proximity graph around a single device.
func (s *Server) handleDeviceContext(w http.ResponseWriter, r *http.Request) {
	id, idType, ok := deviceParams(w, r)
	if !ok {
		return
	}
	depth, ok := parseDepth(w, r)
	if !ok {
		return
	}

	signature := raddec.Signature(id, idType)
	devices := s.store.RetrieveContext([]string{signature}, depth)
	if _, found := devices[signature]; !found {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices})
}

func parseDepth(w http.ResponseWriter, r *http.Request) (int, bool) {
	depthStr := r.URL.Query().Get("depth")
	if depthStr == "" {
		return defaultContextDepth, true
	}
	depth, err := strconv.Atoi(depthStr)
	if err != nil || depth < 1 {
		writeBadRequest(w, "depth must be a positive integer")
		return 0, false
	}
	return depth, true
}
