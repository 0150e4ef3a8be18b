package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/berfenger/energyopt2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMaster answers like the optimizer behind the master actor would.
func fakeMaster(received chan any) actor.ReceiveFunc {
	cfg := domain.DefaultOptimizerConfig()
	states := map[string]domain.EntityState{}
	return func(ctx actor.Context) {
		msg := ctx.Message()
		switch msg.(type) {
		case *actor.Started, *actor.Stopping, *actor.Stopped:
			return
		}
		received <- msg
		switch m := msg.(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: true})
		case domain.GetSnapshotRequest:
			snap := domain.NewSnapshotBuilder(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)).WithConfig(cfg).Build()
			ctx.Respond(domain.GetSnapshotResponse{Snapshot: &snap, Config: cfg, Available: true})
		case domain.SetStrategyRequest:
			next, err := cfg.WithStrategy(m.Strategy)
			if err == nil {
				cfg = next
			}
			ctx.Respond(domain.OptimizerControlResponse{ActorResponseMixIn: domain.ErrorResponse(err), Config: cfg})
		case domain.OptimizerControlRequest:
			ctx.Respond(domain.OptimizerControlResponse{Config: cfg})
		case domain.EntityStateUpdateRequest:
			st := domain.EntityState{EntityId: m.EntityId, Attributes: m.Attributes}
			if m.State != nil {
				st.State = *m.State
			}
			states[m.EntityId] = st
			ctx.Respond(domain.EntityStateUpdateResponse{State: st})
		case domain.GetEntityStateRequest:
			st, ok := states[m.EntityId]
			ctx.Respond(domain.GetEntityStateResponse{State: st, Found: ok})
		case domain.ListEntityStatesRequest:
			var all []domain.EntityState
			for _, st := range states {
				all = append(all, st)
			}
			ctx.Respond(domain.ListEntityStatesResponse{States: all})
		case domain.DeleteEntityStateRequest:
			_, ok := states[m.EntityId]
			delete(states, m.EntityId)
			ctx.Respond(domain.DeleteEntityStateResponse{Found: ok})
		}
	}
}

func newTestServer(t *testing.T) (http.Handler, chan any) {
	as := actor.NewActorSystem()
	received := make(chan any, 16)
	pid := as.Root.Spawn(actor.PropsFromFunc(fakeMaster(received)))
	t.Cleanup(func() {
		as.Root.Stop(pid)
		as.Shutdown()
	})
	s := &Server{rootContext: as.Root, masterActor: pid}
	return s.RegisterRoutes(), received
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(h, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())
}

func TestSnapshotAndConfig(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["available"])
	snap, ok := body["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "idle", snap["next_action"])
	assert.Nil(t, snap["battery_soc"])

	rec = do(h, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg domain.OptimizerConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, domain.STRATEGY_MINIMIZE_COST, cfg.Strategy)
}

func TestControls(t *testing.T) {
	h, received := newTestServer(t)

	rec := do(h, http.MethodPut, "/api/strategy", `{"strategy":"balanced"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"strategy":"balanced"`)
	assert.IsType(t, domain.SetStrategyRequest{}, <-received)

	rec = do(h, http.MethodPut, "/api/strategy", `{"strategy":"yolo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	<-received

	rec = do(h, http.MethodPut, "/api/strategy", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPut, "/api/dry-run", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SetDryRunRequest{Enable: false}, <-received)

	rec = do(h, http.MethodPut, "/api/automation", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPut, "/api/manual-override", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SetManualOverrideRequest{Enable: true}, <-received)

	rec = do(h, http.MethodPut, "/api/soc-limits", `{"min_soc":10,"max_soc":90}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SetSoCLimitsRequest{MinSoC: 10, MaxSoC: 90}, <-received)

	rec = do(h, http.MethodPut, "/api/soc-limits", `{"max_soc":80}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.SetMaxSoCRequest{Value: 80}, <-received)

	rec = do(h, http.MethodPut, "/api/soc-limits", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/optimize", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, domain.TriggerOptimizationRequest{}, <-received)
}

func TestEntityStates(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(h, http.MethodGet, "/api/states/sensor.battery", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPut, "/api/states/sensor.battery", `{"state":"71","attributes":{"unit_of_measurement":"%"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/api/states/sensor.battery", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st domain.EntityState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "71", st.State)
	assert.Equal(t, "%", st.Attributes["unit_of_measurement"])

	rec = do(h, http.MethodPut, "/api/states/battery", `{"state":"71"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPut, "/api/states/sensor.battery", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/states", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []domain.EntityState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, "sensor.battery", all[0].EntityId)

	rec = do(h, http.MethodDelete, "/api/states/sensor.battery", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodDelete, "/api/states/sensor.battery", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntityIdParam(t *testing.T) {
	for _, tt := range []struct {
		id  string
		err bool
	}{
		{"sensor.battery", false},
		{"sensor.solcast_pv_forecast_forecast_today", false},
		{"battery", true},
		{".battery", true},
		{"sensor.", true},
	} {
		t.Run(tt.id, func(t *testing.T) {
			h, _ := newTestServer(t)
			rec := do(h, http.MethodGet, "/api/states/"+tt.id, "")
			assert.Equal(t, tt.err, rec.Code == http.StatusBadRequest)
		})
	}
}
