package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/presence-core/internal/eventlog"
	"github.com/nerrad567/presence-core/internal/presence"
	"github.com/nerrad567/presence-core/internal/raddec"
)

// queryProperties are the values accepted by the properties parameter.
var queryProperties = []string{
	presence.PropertyRaddec,
	presence.PropertyDynamb,
	presence.PropertyStatid,
}

// handleListDevices returns the live devices, keyed by signature.
//
// Query parameters:
//   - deviceId: only devices with this id
//   - deviceIdType: only devices with this id type
//   - properties: comma-separated subset of raddec, dynamb, statid
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := presence.DeviceFilter{DeviceID: q.Get("deviceId")}
	if typeStr := q.Get("deviceIdType"); typeStr != "" {
		idType, err := parseIDType(typeStr)
		if err != nil {
			writeBadRequest(w, "deviceIdType must be a non-negative integer")
			return
		}
		filter.DeviceIDType = &idType
	}

	properties, ok := parseProperties(q.Get("properties"))
	if !ok {
		writeBadRequest(w, "properties must be a subset of raddec, dynamb, statid")
		return
	}

	devices := s.store.RetrieveDevices(filter, properties)
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by id and id type.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, idType, ok := deviceParams(w, r)
	if !ok {
		return
	}

	properties, ok := parseProperties(r.URL.Query().Get("properties"))
	if !ok {
		writeBadRequest(w, "properties must be a subset of raddec, dynamb, statid")
		return
	}

	devices := s.store.RetrieveDevices(presence.DeviceFilter{DeviceID: id, DeviceIDType: &idType}, properties)
	view, found := devices[raddec.Signature(id, idType)]
	if !found {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": map[string]presence.DeviceView{raddec.Signature(id, idType): view},
	})
}

// handleDeviceEvents returns the logged events of one device, newest first.
//
// Query parameters:
//   - limit: maximum entries to return (default 50, max 500)
func (s *Server) handleDeviceEvents(w http.ResponseWriter, r *http.Request) {
	if s.eventLog == nil {
		writeUnavailable(w, "event log is disabled")
		return
	}

	id, idType, ok := deviceParams(w, r)
	if !ok {
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	signature := raddec.Signature(id, idType)
	entries, err := s.eventLog.Recent(r.Context(), signature, limit)
	if err != nil {
		if errors.Is(err, eventlog.ErrNoSignature) {
			writeBadRequest(w, "device signature is required")
			return
		}
		s.logger.Error("event log query failed", "device", signature, "error", err)
		writeInternalError(w, "failed to query event log")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device": signature,
		"events": entries,
		"count":  len(entries),
	})
}

// deviceParams reads the {id} and {type} path parameters, writing a 400 on
// failure.
func deviceParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeBadRequest(w, "device id is required")
		return "", 0, false
	}
	idType, err := parseIDType(chi.URLParam(r, "type"))
	if err != nil {
		writeBadRequest(w, "device id type must be a non-negative integer")
		return "", 0, false
	}
	return id, idType, true
}

func parseIDType(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// parseProperties splits a comma-separated properties list. An empty list
// selects every property.
func parseProperties(s string) ([]string, bool) {
	if s == "" {
		return nil, true
	}
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !slices.Contains(queryProperties, p) {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}
