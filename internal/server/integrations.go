package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipewise/pipewise/internal/crm"
	"github.com/pipewise/pipewise/internal/runtime"
	"github.com/pipewise/pipewise/internal/store"
)

// IntegrationsHandler manages the stored OAuth connections to the
// external CRM platforms.
type IntegrationsHandler struct {
	Store  *store.Store
	Tokens *crm.TokenManager
}

func (h *IntegrationsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/:platform/status", h.status)
	g.POST("/:platform/connect", h.connect)
	g.DELETE("/:platform", h.disconnect)
}

func platformParam(c echo.Context) (string, error) {
	p := c.Param("platform")
	if p != crm.PlatformSalesforce && p != crm.PlatformHubSpot {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unsupported platform: "+p)
	}
	return p, nil
}

// status reports the token lifecycle state for a platform
//
//	@Summary	Integration status
//	@Tags		integrations
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		platform	path	string	true	"Platform (salesforce or hubspot)"
//	@Produce	json
//	@Success	200	{object}	IntegrationStatusResponse
//	@Failure	400	{object}	HTTPError
//	@Router		/api/integrations/{platform}/status [get]
func (h *IntegrationsHandler) status(c echo.Context) error {
	userID := c.Get("user_id").(string)
	platform, err := platformParam(c)
	if err != nil {
		return err
	}
	tok, ok, err := h.Store.LatestToken(c.Request().Context(), userID, platform)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := IntegrationStatusResponse{Platform: platform}
	if ok {
		now := time.Now()
		resp.Connected = !tok.Expired(now)
		resp.TokenState = crm.EvaluateToken(tok, now, now.Add(h.Tokens.RefreshWindow)).String()
		expires := tok.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return c.JSON(http.StatusOK, resp)
}

// connect stores a token obtained by the UI's OAuth flow
//
//	@Summary	Connect platform
//	@Tags		integrations
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		platform	path	string					true	"Platform"
//	@Param		payload		body	ConnectPlatformRequest	true	"OAuth tokens"
//	@Produce	json
//	@Success	201	{string}	string	"Created"
//	@Failure	400	{object}	HTTPError
//	@Router		/api/integrations/{platform}/connect [post]
func (h *IntegrationsHandler) connect(c echo.Context) error {
	userID := c.Get("user_id").(string)
	platform, err := platformParam(c)
	if err != nil {
		return err
	}
	var req ConnectPlatformRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	expiresIn := req.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	if _, err := h.Store.SaveToken(c.Request().Context(), store.Token{
		UserID:       userID,
		Platform:     platform,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		InstanceURL:  req.InstanceURL,
		ExpiresAt:    time.Now().Add(time.Duration(expiresIn) * time.Second),
	}); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusCreated)
}

// disconnect removes all stored tokens for a platform
//
//	@Summary	Disconnect platform
//	@Tags		integrations
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		platform	path	string	true	"Platform"
//	@Success	204	{string}	string	"No Content"
//	@Failure	400	{object}	HTTPError
//	@Router		/api/integrations/{platform} [delete]
func (h *IntegrationsHandler) disconnect(c echo.Context) error {
	userID := c.Get("user_id").(string)
	platform, err := platformParam(c)
	if err != nil {
		return err
	}
	if err := h.Store.DeleteTokens(c.Request().Context(), userID, platform); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
