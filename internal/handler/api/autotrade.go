package api

import (
	"net/http"
	"strconv"

	"TradeGate/internal/broker"
	"TradeGate/internal/domain/models"
	"TradeGate/internal/usecase"
	xhttp "TradeGate/pkg/http"
	"TradeGate/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AutoTradeHandler exposes the gateway and broker router over HTTP.
type AutoTradeHandler struct {
	log     *logger.Logger
	gateway *usecase.Gateway
	router  *broker.Router
}

// NewAutoTradeHandler creates the auto-trading API handler.
func NewAutoTradeHandler(log *logger.Logger, gw *usecase.Gateway, rt *broker.Router) *AutoTradeHandler {
	return &AutoTradeHandler{log: log, gateway: gw, router: rt}
}

// RegisterRoutes registers all auto-trading routes.
func (h *AutoTradeHandler) RegisterRoutes(e *echo.Echo) {
	at := e.Group("/api/autotrade")
	at.POST("/start", h.start)
	at.POST("/stop", h.stop)
	at.GET("/status", h.status)
	at.POST("/pairs", h.addPair)
	at.DELETE("/pairs", h.removePair)
	at.POST("/close-all", h.closeAll)
	at.POST("/cycle", h.runCycle)

	br := e.Group("/api/brokers")
	br.GET("/health", h.brokersHealth)
	br.GET("/audit", h.audit)
	br.POST("/reconcile", h.reconcile)

	e.POST("/api/killswitch", h.killSwitch)
}

func (h *AutoTradeHandler) start(c echo.Context) error {
	var req models.StartAutoTradingRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	if err := h.gateway.Start(c.Request().Context(), req.Broker, req.AllowDisconnected); err != nil {
		h.log.Warn("auto-trading start refused", logger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
	}
	return xhttp.SuccessResponse(c, h.statusPayload())
}

func (h *AutoTradeHandler) stop(c echo.Context) error {
	var req models.StopAutoTradingRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	h.gateway.Stop(req.Broker)
	return xhttp.SuccessResponse(c, h.statusPayload())
}

func (h *AutoTradeHandler) status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.statusPayload())
}

func (h *AutoTradeHandler) statusPayload() models.GatewayStatus {
	st := h.gateway.Status()
	st.KillSwitch = h.router.KillSwitch()
	st.BreakersHealthy = h.router.BreakersHealthy()
	return st
}

func (h *AutoTradeHandler) addPair(c echo.Context) error {
	var req models.PairRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}
	h.gateway.AddPair(req.Pair)
	return xhttp.SuccessResponse(c, h.gateway.Status().Pairs)
}

func (h *AutoTradeHandler) removePair(c echo.Context) error {
	var req models.PairRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}
	h.gateway.RemovePair(req.Pair)
	return xhttp.SuccessResponse(c, h.gateway.Status().Pairs)
}

func (h *AutoTradeHandler) closeAll(c echo.Context) error {
	closed := h.gateway.CloseAllTrades(c.Request().Context(), "manual close-all")
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"closed": closed,
		"count":  len(closed),
	})
}

func (h *AutoTradeHandler) runCycle(c echo.Context) error {
	h.gateway.RunCycle(c.Request().Context())
	return xhttp.SuccessResponse(c, h.statusPayload())
}

func (h *AutoTradeHandler) brokersHealth(c echo.Context) error {
	snaps := h.router.HealthSnapshots(c.Request().Context())
	return xhttp.SuccessResponse(c, snaps)
}

func (h *AutoTradeHandler) audit(c echo.Context) error {
	limit := 100
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("limit must be a positive integer, got %q", v))
		}
		limit = n
	}
	return xhttp.ListResponse(c, h.router.RecentAudit(limit), int64(limit))
}

func (h *AutoTradeHandler) reconcile(c echo.Context) error {
	report := h.router.RunReconciliation(c.Request().Context())
	return xhttp.SuccessResponse(c, report)
}

func (h *AutoTradeHandler) killSwitch(c echo.Context) error {
	var req models.KillSwitchRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}
	h.router.SetKillSwitch(req.Engaged)
	if req.Engaged {
		h.gateway.Stop("")
	}
	return xhttp.DataResponse(c, http.StatusOK, map[string]bool{"engaged": req.Engaged})
}

var _ xhttp.Handler = (*AutoTradeHandler)(nil)
