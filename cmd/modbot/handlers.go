package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/modbot-dev/modbot/automod/actionlog"
	"github.com/modbot-dev/modbot/automod/engine"
	"github.com/modbot-dev/modbot/automod/policy"

	"github.com/labstack/echo/v4"
)

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "modbot"})
}

func (srv *Server) HandleToolCatalog(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"tools": engine.ToolCatalog()})
}

// Ingests one chat message for moderation and returns the verdict.
func (srv *Server) HandleMessage(c echo.Context) error {
	var msg engine.Message
	if err := c.Bind(&msg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message body")
	}
	if msg.ID == "" || msg.AuthorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message id and author_id are required")
	}
	verdict, err := srv.engine.ProcessMessage(c.Request().Context(), &msg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, verdict)
}

type ruleView struct {
	Name    string   `json:"name"`
	Range   string   `json:"range"`
	Actions []string `json:"actions"`
}

type thresholdView struct {
	Count    int    `json:"count"`
	FollowUp string `json:"follow_up"`
}

func (srv *Server) HandleRules(c echo.Context) error {
	pol := srv.engine.Policy
	rules := []ruleView{}
	for _, r := range pol.Rules {
		rules = append(rules, ruleView{Name: r.Name, Range: r.Range(), Actions: r.Actions})
	}
	thresholds := map[string][]thresholdView{}
	for _, base := range pol.Escalation.BaseActions() {
		for _, t := range pol.Escalation.For(base) {
			thresholds[base] = append(thresholds[base], thresholdView{Count: t.Count, FollowUp: t.FollowUp})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"rules":          rules,
		"window_minutes": pol.Escalation.WindowMinutes,
		"thresholds":     thresholds,
		"summary":        policy.FormatRules(pol, false),
	})
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" parameter")
	}
	return v, nil
}

// Splits "warn_user,timeout_member*" into exact names and prefixes.
func parseActionFilter(raw string) (exact []string, prefixes []string) {
	for _, a := range strings.Split(raw, ",") {
		a = strings.TrimSpace(a)
		switch {
		case a == "":
		case strings.HasSuffix(a, "*"):
			prefixes = append(prefixes, strings.TrimSuffix(a, "*"))
		default:
			exact = append(exact, a)
		}
	}
	return exact, prefixes
}

func (srv *Server) HandleHistory(c echo.Context) error {
	if srv.engine.History == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history not available")
	}
	target := c.Param("target")
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return err
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return err
	}
	window, err := queryInt(c, "window_minutes", 0)
	if err != nil {
		return err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page = max(page, 1)
	exact, prefixes := parseActionFilter(c.QueryParam("actions"))

	ctx := c.Request().Context()
	records, err := srv.engine.History.FetchActions(ctx, actionlog.HistoryQuery{
		TargetID:      target,
		Limit:         limit,
		Offset:        (page - 1) * limit,
		WindowMinutes: window,
		Actions:       exact,
		LikePrefixes:  prefixes,
	})
	if err != nil {
		return err
	}
	total, err := srv.engine.History.CountActions(ctx, target, window)
	if err != nil {
		return err
	}
	if records == nil {
		records = []actionlog.ActionRecord{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"target":  target,
		"page":    page,
		"total":   total,
		"records": records,
	})
}

func (srv *Server) HandleActionCounts(c echo.Context) error {
	if srv.engine.History == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history not available")
	}
	window, err := queryInt(c, "window_minutes", 1440)
	if err != nil {
		return err
	}
	counts, err := srv.engine.History.AggregateCounts(c.Request().Context(), window)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"window_minutes": window,
		"counts":         counts,
	})
}

type appealBody struct {
	GuildID      string   `json:"guild_id"`
	GuildOwnerID string   `json:"guild_owner_id"`
	UserID       string   `json:"user_id"`
	Roles        []string `json:"roles"`
	Reason       string   `json:"reason"`
}

func appealHTTPError(err error) error {
	switch {
	case errors.Is(err, engine.ErrAppealsUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrModeratorAppeal):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, engine.ErrAppealOpen):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrMissingReason), errors.Is(err, engine.ErrInvalidDecision):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrAppealNotFound), errors.Is(err, actionlog.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}

func (srv *Server) HandleSubmitAppeal(c echo.Context) error {
	var body appealBody
	if err := c.Bind(&body); err != nil || body.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and reason are required")
	}
	isMod := srv.engine.IsModerator(&engine.Message{
		GuildOwnerID: body.GuildOwnerID,
		AuthorID:     body.UserID,
		AuthorRoles:  body.Roles,
	})
	ap, err := srv.engine.SubmitAppeal(c.Request().Context(), engine.AppealRequest{
		GuildID:     body.GuildID,
		UserID:      body.UserID,
		Reason:      body.Reason,
		IsModerator: isMod,
	})
	if err != nil {
		return appealHTTPError(err)
	}
	return c.JSON(http.StatusCreated, ap)
}

func (srv *Server) HandleListAppeals(c echo.Context) error {
	if srv.engine.Appeals == nil {
		return appealHTTPError(engine.ErrAppealsUnavailable)
	}
	status := c.QueryParam("status")
	switch status {
	case "", "all", string(actionlog.AppealOpen), string(actionlog.AppealDecided):
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "status must be open, decided or all")
	}
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return err
	}
	appeals, err := srv.engine.Appeals.ListAppeals(c.Request().Context(), status, c.QueryParam("user"), limit)
	if err != nil {
		return err
	}
	if appeals == nil {
		appeals = []actionlog.AppealView{}
	}
	return c.JSON(http.StatusOK, map[string]any{"appeals": appeals})
}

func (srv *Server) HandleDecideAppeal(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appeal id")
	}
	var body engine.AppealDecision
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid decision body")
	}
	if body.ModeratorID == "" || strings.TrimSpace(body.Resolution) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "moderator_id and resolution are required")
	}
	notified, err := srv.engine.DecideAppeal(c.Request().Context(), uint(id), body)
	if err != nil {
		return appealHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":       id,
		"decision": strings.ToLower(strings.TrimSpace(body.Decision)),
		"notified": notified,
	})
}
