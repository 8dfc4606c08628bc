package main

import (
	"context"
	"sync"
	"time"

	"maptrack/internal/areawatch"
	"maptrack/internal/flow"
	"maptrack/internal/ipc"
	"maptrack/internal/session"
)

// statusPayload is the data returned for the status op.
type statusPayload struct {
	Session sessionStatus `json:"session"`
	Monitor monitorStatus `json:"monitor"`
	Flow    flowStatus    `json:"flow"`
}

type sessionStatus struct {
	SessionID      string  `json:"sessionId"`
	StartedAt      string  `json:"startedAt"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	MapsCompleted  int     `json:"mapsCompleted"`
	TotalValue     float64 `json:"totalValue"`
	AvgValue       float64 `json:"avgValue"`
	AvgTimeMinutes float64 `json:"avgTimeMinutes"`

	TopDrops []session.DropRecord `json:"topDrops,omitempty"`
}

type monitorStatus struct {
	Running     bool   `json:"running"`
	CurrentArea string `json:"currentArea,omitempty"`
	InMap       bool   `json:"inMap"`
	CurrentMap  string `json:"currentMap,omitempty"`
	Offset      int64  `json:"offset"`
}

type flowStatus struct {
	HoldingPre   bool   `json:"holdingPre"`
	CurrentMap   string `json:"currentMap,omitempty"`
	WaystoneTier int    `json:"waystoneTier,omitempty"`
}

// controlHandler serves maptrackctl requests. Flow-triggering ops run
// synchronously on the connection goroutine; the rate limiter may block
// them, which is the intended backpressure.
type controlHandler struct {
	orch    *flow.Orchestrator
	monitor *areawatch.Monitor
	agg     *session.Aggregator

	stopOnce sync.Once
	stop     chan<- struct{}
}

func newControlHandler(orch *flow.Orchestrator, monitor *areawatch.Monitor, agg *session.Aggregator, stop chan<- struct{}) *controlHandler {
	return &controlHandler{orch: orch, monitor: monitor, agg: agg, stop: stop}
}

// Handle implements ipc.Handler.
func (h *controlHandler) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Op {
	case ipc.OpPing:
		return ipc.Ok(map[string]string{"pong": time.Now().Format(time.RFC3339)})

	case ipc.OpStatus:
		return ipc.Ok(h.status())

	case ipc.OpPre:
		if !h.orch.ExecutePreFlow(ctx) {
			return ipc.Errf("pre flow failed; see daemon log")
		}
		return ipc.Ok(nil)

	case ipc.OpPost:
		if !h.orch.ExecutePostFlow(ctx, nil) {
			return ipc.Errf("post flow failed; see daemon log")
		}
		return ipc.Ok(h.status())

	case ipc.OpReset:
		h.orch.ResetRecords()
		h.monitor.ResetState()
		return ipc.Ok(nil)

	case ipc.OpNewSession:
		if err := h.orch.NewSession(); err != nil {
			return ipc.Errf("new session: %v", err)
		}
		h.monitor.ResetState()
		return ipc.Ok(map[string]string{"sessionId": h.agg.ID()})

	case ipc.OpStop:
		h.stopOnce.Do(func() { close(h.stop) })
		return ipc.Ok(nil)

	default:
		return ipc.Errf("unknown op %q", req.Op)
	}
}

func (h *controlHandler) status() statusPayload {
	p := h.orch.Progress()
	ms := h.monitor.Status()
	fst := h.orch.State()

	out := statusPayload{
		Session: sessionStatus{
			SessionID:      p.SessionID,
			StartedAt:      p.StartedAt.Format(time.RFC3339),
			ElapsedSeconds: p.Elapsed.Seconds(),
			MapsCompleted:  p.MapsCompleted,
			TotalValue:     p.TotalValue,
			AvgValue:       p.AvgValue,
			AvgTimeMinutes: p.AvgTimeMinutes,
			TopDrops:       h.agg.TopDrops(),
		},
		Monitor: monitorStatus{
			Running:     ms.Running,
			CurrentArea: ms.CurrentArea,
			InMap:       ms.InMap,
			Offset:      ms.Offset,
		},
		Flow: flowStatus{
			HoldingPre: fst.HoldingPre,
			CurrentMap: fst.CurrentMap.Name,
		},
	}
	if ms.CurrentMap != nil {
		out.Monitor.CurrentMap = ms.CurrentMap.AreaCode
	}
	if fst.Waystone != nil {
		out.Flow.WaystoneTier = fst.Waystone.Tier
	}
	return out
}
