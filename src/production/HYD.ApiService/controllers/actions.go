package controllers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/hydrahome/hyd.control_server/src/production/HYD.ApiService/middleware"
	gateway "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Gateway"
	logger "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Logger"
	metrics "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Metrics"
)

const logFieldsKey = "hyd.log_fields"

// actionFunc runs one action. A gin.H result is wrapped in the success
// envelope; any other value is written as is.
type actionFunc func(ctx *gin.Context) (interface{}, error)

type action struct {
	methods []string
	run     actionFunc
}

func get(run actionFunc) action  { return action{methods: []string{http.MethodGet}, run: run} }
func post(run actionFunc) action { return action{methods: []string{http.MethodPost}, run: run} }

// actionRouter serves the ?action=<name> style endpoints of one gateway
type actionRouter struct {
	gateway string
	actions map[string]action
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func newActionRouter(gatewayName string, actions map[string]action, log *logger.Logger, m *metrics.Metrics) *actionRouter {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &actionRouter{
		gateway: gatewayName,
		actions: actions,
		logger:  log.WithComponent(gatewayName),
		metrics: m,
	}
}

// names lists the registered actions, for error messages
func (r *actionRouter) names() string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func (r *actionRouter) serve(ctx *gin.Context) {
	r.serveAction(ctx, "")
}

// withDefault serves requests that carry no ?action= as defaultAction.
// The old PHP clients post to a fixed path and never name an action.
func (r *actionRouter) withDefault(defaultAction string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		r.serveAction(ctx, defaultAction)
	}
}

func (r *actionRouter) serveAction(ctx *gin.Context, defaultAction string) {
	start := time.Now()
	name := strings.TrimSpace(ctx.Query("action"))
	if name == "" {
		name = defaultAction
	}

	a, known := r.actions[name]
	label := name
	if !known {
		label = "unknown"
	}

	status, body, err := r.dispatch(ctx, name, a, known)
	if err != nil {
		r.logFailure(ctx, name, status, err)
		body = gin.H{"error": gateway.PublicMessage(err)}
	}

	ctx.JSON(status, body)
	r.metrics.ObserveRequest(r.gateway, label, status, time.Since(start))
}

func (r *actionRouter) dispatch(ctx *gin.Context, name string, a action, known bool) (int, interface{}, error) {
	if name == "" {
		return http.StatusBadRequest, nil, &gateway.ValidationError{Field: "action", Message: "is required"}
	}
	if !known {
		return http.StatusBadRequest, nil, &gateway.ValidationError{
			Field:   "action",
			Message: "unknown action " + strconv.Quote(name) + " (expected one of: " + r.names() + ")",
		}
	}
	if !allowed(a.methods, ctx.Request.Method) {
		return http.StatusBadRequest, nil, &gateway.ValidationError{
			Message: "method " + ctx.Request.Method + " not allowed for " + name + ", use " + strings.Join(a.methods, " or "),
		}
	}

	result, err := a.run(ctx)
	if err != nil {
		return gateway.HTTPStatus(err), nil, err
	}

	if h, ok := result.(gin.H); ok {
		envelope := gin.H{"success": true}
		for k, v := range h {
			envelope[k] = v
		}
		return http.StatusOK, envelope, nil
	}
	return http.StatusOK, result, nil
}

func (r *actionRouter) logFailure(ctx *gin.Context, name string, status int, err error) {
	fields := map[string]interface{}{
		"gateway":    r.gateway,
		"action":     name,
		"method":     ctx.Request.Method,
		"status":     status,
		"request_id": middleware.GetRequestID(ctx),
	}
	if extra, ok := ctx.Get(logFieldsKey); ok {
		for k, v := range extra.(map[string]interface{}) {
			fields[k] = v
		}
	}

	log := r.logger.WithError(err).WithFields(fields)
	if status >= http.StatusInternalServerError {
		log.Error("Action failed")
		return
	}
	log.Warn("Action rejected")
}

// annotate attaches identifiers to the failure log of the current request
func annotate(ctx *gin.Context, fields map[string]interface{}) {
	existing, ok := ctx.Get(logFieldsKey)
	if !ok {
		ctx.Set(logFieldsKey, fields)
		return
	}
	merged := existing.(map[string]interface{})
	for k, v := range fields {
		merged[k] = v
	}
}

func allowed(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}

// bindJSON decodes the request body, reporting malformed input as a 400
func bindJSON(ctx *gin.Context, dst interface{}) error {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		return &gateway.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return nil
}

// queryInt reads an integer query parameter. Missing or non numeric values
// read as 0 so the gateway applies its default.
func queryInt(ctx *gin.Context, key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(ctx.Query(key)))
	if err != nil {
		return 0
	}
	return v
}

// queryBool reads an optional boolean filter such as resolved=
func queryBool(ctx *gin.Context, key string) (*bool, error) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &gateway.ValidationError{Field: key, Message: "must be true or false"}
	}
	return &v, nil
}
