package controllers

import (
	"github.com/gin-gonic/gin"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	metrics "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Metrics"
)

// IngestController exposes the node-facing gateway
type IngestController struct {
	ingest *gateway.Ingest
	router *actionRouter
}

// NewIngestController creates a new ingest controller
func NewIngestController(ingest *gateway.Ingest, log *logger.Logger, m *metrics.Metrics) *IngestController {
	c := &IngestController{ingest: ingest}
	c.router = newActionRouter("ingest", map[string]action{
		"sensor_data":    post(c.sensorData),
		"device_status":  post(c.deviceStatus),
		"get_commands":   get(c.getCommands),
		"alert":          post(c.alert),
		"get_config":     get(c.getConfig),
		"system_status":  post(c.systemStatus),
		"keypad_event":   post(c.keypadEvent),
		"legacy_reading": post(c.legacyReading),
	}, log, m)
	return c
}

// RegisterRoutes registers the ingest routes with Gin
func (c *IngestController) RegisterRoutes(router *gin.Engine) {
	router.Any("/api/ingest", c.router.serve)
	// path older firmware still posts to
	router.Any("/serverAPI/api_ingest.php", c.router.withDefault("legacy_reading"))
}

func (c *IngestController) sensorData(ctx *gin.Context) (interface{}, error) {
	var req gateway.SensorReport
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"device_id": req.DeviceID, "room": req.Room})

	id, err := c.ingest.ReportSensors(ctx.Request.Context(), req)
	if err != nil {
		return nil, err
	}
	return gin.H{"id": id}, nil
}

func (c *IngestController) deviceStatus(ctx *gin.Context) (interface{}, error) {
	var req gateway.DeviceStatusReport
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"device_id": req.DeviceID, "room": req.Room, "device_type": req.DeviceType})

	if err := c.ingest.ReportDeviceStatus(ctx.Request.Context(), req); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}

func (c *IngestController) getCommands(ctx *gin.Context) (interface{}, error) {
	commands, err := c.ingest.PollCommands(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	return gin.H{"commands": commands}, nil
}

func (c *IngestController) alert(ctx *gin.Context) (interface{}, error) {
	var req gateway.AlertReport
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"device_id": req.DeviceID, "alert_type": req.AlertType})

	id, err := c.ingest.ReportAlert(ctx.Request.Context(), req)
	if err != nil {
		return nil, err
	}
	return gin.H{"id": id}, nil
}

func (c *IngestController) getConfig(ctx *gin.Context) (interface{}, error) {
	cfg, err := c.ingest.GetConfig(ctx.Request.Context())
	if err != nil {
		return nil, err
	}
	return gin.H{"config": cfg}, nil
}

func (c *IngestController) systemStatus(ctx *gin.Context) (interface{}, error) {
	var req gateway.SystemStatusReport
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"device_id": req.DeviceID})

	if err := c.ingest.ReportSystemStatus(ctx.Request.Context(), req); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}

func (c *IngestController) keypadEvent(ctx *gin.Context) (interface{}, error) {
	var req gateway.KeypadReport
	if err := bindJSON(ctx, &req); err != nil {
		return nil, err
	}
	annotate(ctx, map[string]interface{}{"device_id": req.DeviceID, "keypad_action": req.Action})

	id, err := c.ingest.ReportKeypadEvent(ctx.Request.Context(), req)
	if err != nil {
		return nil, err
	}
	return gin.H{"id": id}, nil
}

// legacyReading accepts JSON or the Temp/Hum/mot form fields
func (c *IngestController) legacyReading(ctx *gin.Context) (interface{}, error) {
	var req gateway.LegacyReport
	if err := ctx.ShouldBind(&req); err != nil {
		return nil, &gateway.ValidationError{Message: "invalid request body: " + err.Error()}
	}

	if err := c.ingest.AppendLegacyReading(ctx.Request.Context(), req); err != nil {
		return nil, err
	}
	return gin.H{}, nil
}
