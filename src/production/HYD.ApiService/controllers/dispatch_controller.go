package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	metrics "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Metrics"
)

// DispatchController exposes the dashboard-facing gateway
type DispatchController struct {
	dispatch *gateway.Dispatch
	router   *actionRouter
}

// NewDispatchController creates a new dispatch controller
func NewDispatchController(dispatch *gateway.Dispatch, log *logger.Logger, m *metrics.Metrics) *DispatchController {
	c := &DispatchController{dispatch: dispatch}
	c.router = newActionRouter("dispatch", map[string]action{
		"get_latest":    get(c.getLatest),
		"room_detail":   get(c.roomDetail),
		"send_command":  post(c.sendCommand),
		"get_alerts":    get(c.getAlerts),
		"resolve_alert": post(c.resolveAlert),
		"chart_data":    get(c.chartData),
		"get_config":    get(c.getConfig),
		"update_config": post(c.updateConfig),
		"system_status": get(c.systemStatus),
		"keypad_events": get(c.keypadEvents),
		// older dashboards fetch this with POST
		"latest_reading": {methods: []string{http.MethodGet, http.MethodPost}, run: c.latestReading},
	}, log, m)
	return c
}

// RegisterRoutes registers the dispatch routes with Gin
func (c *DispatchController) RegisterRoutes(router *gin.Engine) {
	router.Any("/api/dispatch", c.router.serve)
	router.Any("/serverAPI/api_dispatch.php", c.router.withDefault("latest_reading"))
}

func (c *DispatchController) getLatest(ctx *gin.Context) (interface{}, error) {
	rooms, err := c.dispatch.LatestPerRoom(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	return gin.H{"data": rooms}, nil
}

func (c *DispatchController) roomDetail(ctx *gin.Context) (interface{}, error) {
	room := ctx.Query("room")
	annotate(ctx, map[string]interface{}{"room": room})

	detail, err := c.dispatch.RoomDetail(ctx.Request.Context(), room)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"room":    detail.Room,
		"current": detail.Current,
		"devices": detail.Devices,
		"history": detail.History,
	}, nil
}

func (c *DispatchController) sendCommand(ctx *gin.Context) (interface{}, error) {
	var req gateway.CommandRequest
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"room": req.Room, "device_type": req.DeviceType, "command": req.Action})

	id, err := c.dispatch.EnqueueCommand(ctx.Request.Context(), req)
	if err != nil {
		return nil, err
	}
	return gin.H{"id": id}, nil
}

func (c *DispatchController) getAlerts(ctx *gin.Context) (interface{}, error) {
	resolved, err := queryBool(ctx, "resolved")
	if err != nil {
		return nil, err
	}

	alerts, err := c.dispatch.ListAlerts(ctx.Request.Context(), resolved, queryInt(ctx, "limit"))
	if err != nil {
		return nil, err
	}
	return gin.H{"alerts": alerts}, nil
}

func (c *DispatchController) resolveAlert(ctx *gin.Context) (interface{}, error) {
	var req gateway.ResolveRequest
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"alert_id": req.AlertID})

	resolved, err := c.dispatch.ResolveAlert(ctx.Request.Context(), req)
	if err != nil {
		return nil, err
	}
	return gin.H{"resolved": resolved}, nil
}

func (c *DispatchController) chartData(ctx *gin.Context) (interface{}, error) {
	room := ctx.Query("room")
	annotate(ctx, map[string]interface{}{"room": room})

	points, err := c.dispatch.ChartSeries(ctx.Request.Context(), room, queryInt(ctx, "hours"))
	if err != nil {
		return nil, err
	}
	return gin.H{"data": points}, nil
}

func (c *DispatchController) getConfig(ctx *gin.Context) (interface{}, error) {
	cfg, err := c.dispatch.GetConfig(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	return gin.H{"config": cfg}, nil
}

func (c *DispatchController) updateConfig(ctx *gin.Context) (interface{}, error) {
	var req gateway.ConfigUpdate
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"config_key": req.Key})

	if err := c.dispatch.UpdateConfig(ctx.Request.Context(), req); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}

func (c *DispatchController) systemStatus(ctx *gin.Context) (interface{}, error) {
	deviceID := ctx.Query("device_id")
	annotate(ctx, map[string]interface{}{"device_id": deviceID})

	view, err := c.dispatch.SystemStatus(ctx.Request.Context(), deviceID)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"device_id": view.DeviceID,
		"status":    view.Status,
		"last_seen": view.LastSeen,
		"known":     view.Known,
	}, nil
}

func (c *DispatchController) keypadEvents(ctx *gin.Context) (interface{}, error) {
	events, err := c.dispatch.KeypadEvents(ctx.Request.Context(), queryInt(ctx, "since"))
	if err != nil {
		return nil, err
	}
	return gin.H{"events": events}, nil
}

// latestReading keeps the bare single-object shape of the old endpoint
func (c *DispatchController) latestReading(ctx *gin.Context) (interface{}, error) {
	reading, err := c.dispatch.LatestLegacyReading(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	if reading == nil {
		return noData{Error: "No data available"}, nil
	}
	return reading, nil
}

type noData struct {
	Error string `json:"error"`
}
