package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ventgate/internal/core"
	"ventgate/internal/storage"
)

type invokeBody struct {
	Name      json.RawMessage `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, a.gateway.Health(time.Now()))
}

func (a *Adapter) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := a.gateway.Capabilities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"capabilities": caps})
}

func (a *Adapter) handleInvoke(w http.ResponseWriter, r *http.Request) {
	req, status, err := decodeInvokeRequest(r)
	if err != nil {
		writeErrorStatus(w, r, status, err)
		return
	}
	res, err := a.gateway.Invoke(r.Context(), requestIDFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload := res.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"result": payload})
}

// decodeInvokeRequest проверяет форму тела до обращения к шлюзу. Неизвестные поля допускаются.
func decodeInvokeRequest(r *http.Request) (core.CapabilityRequest, int, error) {
	var body invokeBody
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.CapabilityRequest{}, http.StatusRequestEntityTooLarge,
				core.Errorf(core.KindInvalidRequest, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return core.CapabilityRequest{}, http.StatusBadRequest, core.WrapError(core.KindInvalidRequest, "request body must be a JSON object", err)
	}
	if dec.More() {
		return core.CapabilityRequest{}, http.StatusBadRequest, core.NewError(core.KindInvalidRequest, "request body must contain a single JSON object")
	}

	if len(body.Name) == 0 || string(body.Name) == "null" {
		return core.CapabilityRequest{}, http.StatusBadRequest, core.NewError(core.KindInvalidRequest, "name is required")
	}
	var name string
	if err := json.Unmarshal(body.Name, &name); err != nil {
		return core.CapabilityRequest{}, http.StatusBadRequest, core.NewError(core.KindInvalidRequest, "name must be a string")
	}
	args, err := core.ParseArguments(body.Arguments)
	if err != nil {
		return core.CapabilityRequest{}, http.StatusBadRequest, err
	}
	req := core.CapabilityRequest{Name: name, Arguments: args}
	if err := req.Validate(); err != nil {
		return core.CapabilityRequest{}, http.StatusBadRequest, err
	}
	return req, http.StatusOK, nil
}

func (a *Adapter) handleRuntime(w http.ResponseWriter, r *http.Request) {
	snap := a.gateway.Snapshot()
	if !snap.Ready() {
		writeError(w, r, core.NewError(core.KindConnectorUnavailable, "capability provider is not ready").
			WithDetails(map[string]any{"state": snap.State.String(), "failure": snap.Failure}))
		return
	}
	resp := map[string]any{
		"state":         snap.State.String(),
		"serverName":    snap.ServerName,
		"serverVersion": snap.ServerVersion,
		"pid":           snap.PID,
	}
	if snap.PID > 0 && a.stats != nil {
		st, err := a.stats(r.Context(), snap.PID)
		if err != nil {
			a.logger.Debug("runtime stats unavailable", "pid", snap.PID, "err", err)
		} else {
			resp["process"] = st
		}
	}
	if a.samples != nil {
		sample, err := a.samples.LatestSample(r.Context())
		switch {
		case err == nil:
			resp["lastSample"] = sampleDTO{
				PID:        sample.PID,
				CPUPercent: sample.CPUPercent,
				RSSBytes:   sample.RSSBytes,
				Threads:    sample.Threads,
				TS:         sample.TS.UTC().Format(time.RFC3339),
			}
		case !errors.Is(err, storage.ErrNotFound):
			a.logger.Warn("latest runtime sample unavailable", "err", err)
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type sampleDTO struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
	Threads    int32   `json:"threads"`
	TS         string  `json:"ts"`
}

type invocationDTO struct {
	RequestID  string `json:"requestId,omitempty"`
	Capability string `json:"capability"`
	Status     string `json:"status"`
	ErrorKind  string `json:"errorKind,omitempty"`
	DurationMS int64  `json:"durationMs"`
	TS         string `json:"ts"`
}

func (a *Adapter) handleAudit(w http.ResponseWriter, r *http.Request) {
	if a.audit == nil {
		writeErrorStatus(w, r, http.StatusNotFound, core.NewError(core.KindInvalidRequest, "audit trail is disabled"))
		return
	}

	query := r.URL.Query()
	q := storage.InvocationQuery{
		Capability: strings.TrimSpace(query.Get("capability")),
		Limit:      parseLimit(query.Get("limit")),
	}
	for _, bound := range []struct {
		key string
		dst *time.Time
	}{{"from", &q.From}, {"to", &q.To}} {
		v := query.Get(bound.key)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, core.Errorf(core.KindInvalidRequest, "%s must be an RFC3339 timestamp", bound.key))
			return
		}
		*bound.dst = ts
	}

	records, err := a.audit.QueryInvocations(r.Context(), q)
	if err != nil {
		a.logger.Warn("audit query failed", "err", err)
		writeError(w, r, core.WrapError(core.KindProviderFailure, "audit query failed", err))
		return
	}
	items := make([]invocationDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, invocationDTO{
			RequestID:  rec.RequestID,
			Capability: rec.Capability,
			Status:     rec.Status,
			ErrorKind:  rec.ErrorKind,
			DurationMS: rec.DurationMS,
			TS:         rec.TS.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": items})
}

func parseLimit(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
