package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pipewise/pipewise/internal/runtime"
	"github.com/pipewise/pipewise/internal/store"
)

// TestDataHandler generates and clears linked sample CRM data so agents
// can be exercised without a connected platform.
type TestDataHandler struct {
	Store *store.Store
}

func (h *TestDataHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.POST("/seed", h.seed)
	g.DELETE("", h.clear)
}

// seed generates linked test records
//
//	@Summary	Seed test data
//	@Tags		testdata
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		contacts	query	int	false	"Contacts to create (default 10, max 50)"
//	@Produce	json
//	@Success	201	{object}	SeedResponse
//	@Router		/api/testdata/seed [post]
func (h *TestDataHandler) seed(c echo.Context) error {
	userID := c.Get("user_id").(string)
	contacts, _ := strconv.Atoi(c.QueryParam("contacts"))
	counts, err := h.Store.SeedTestData(c.Request().Context(), userID, contacts)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, SeedResponse{
		Companies:     counts.Companies,
		Contacts:      counts.Contacts,
		Opportunities: counts.Opportunities,
		Activities:    counts.Activities,
	})
}

// clear removes every seeded row for the user
//
//	@Summary	Clear test data
//	@Tags		testdata
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Success	204	{string}	string	"No Content"
//	@Router		/api/testdata [delete]
func (h *TestDataHandler) clear(c echo.Context) error {
	userID := c.Get("user_id").(string)
	if err := h.Store.ClearTestData(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
