package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pipewise/pipewise/internal/runtime"
	"github.com/pipewise/pipewise/internal/store"
)

// RecordsHandler serves the native CRM records: contacts, opportunities
// and activities.
type RecordsHandler struct {
	Store *store.Store
}

func (h *RecordsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(runtime.EchoAuthMiddleware(secret))
	g.GET("/contacts", h.listContacts)
	g.GET("/contacts/:id", h.getContact)
	g.POST("/contacts", h.createContact)
	g.GET("/opportunities", h.listOpportunities)
	g.GET("/opportunities/:id", h.getOpportunity)
	g.POST("/opportunities", h.createOpportunity)
	g.GET("/activities", h.listActivities)
	g.POST("/activities", h.createActivity)
}

// List contacts
//
//	@Summary	List contacts
//	@Tags		records
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		limit	query	int	false	"Max rows (default 50)"
//	@Produce	json
//	@Success	200	{array}	store.Contact
//	@Router		/api/contacts [get]
func (h *RecordsHandler) listContacts(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListContacts(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *RecordsHandler) getContact(c echo.Context) error {
	userID := c.Get("user_id").(string)
	contact, ok, err := h.Store.GetContact(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "contact not found")
	}
	return c.JSON(http.StatusOK, contact)
}

func (h *RecordsHandler) createContact(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateContactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.Store.CreateContact(c.Request().Context(), store.Contact{
		UserID:     userID,
		CompanyID:  req.CompanyID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Title:      req.Title,
		Department: req.Department,
		LeadScore:  req.LeadScore,
		Status:     req.Status,
		Tags:       req.Tags,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

// List opportunities
//
//	@Summary	List opportunities
//	@Tags		records
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		limit	query	int	false	"Max rows (default 50)"
//	@Produce	json
//	@Success	200	{array}	store.Opportunity
//	@Router		/api/opportunities [get]
func (h *RecordsHandler) listOpportunities(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListOpportunities(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *RecordsHandler) getOpportunity(c echo.Context) error {
	userID := c.Get("user_id").(string)
	opp, ok, err := h.Store.GetOpportunity(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "opportunity not found")
	}
	return c.JSON(http.StatusOK, opp)
}

func (h *RecordsHandler) createOpportunity(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.Store.CreateOpportunity(c.Request().Context(), store.Opportunity{
		UserID:            userID,
		ContactID:         req.ContactID,
		CompanyID:         req.CompanyID,
		Name:              req.Name,
		Amount:            req.Amount,
		Stage:             req.Stage,
		Probability:       req.Probability,
		Priority:          req.Priority,
		ExpectedCloseDate: req.ExpectedCloseDate,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}

func (h *RecordsHandler) listActivities(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.Store.ListActivities(c.Request().Context(), userID, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *RecordsHandler) createActivity(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.Store.CreateActivity(c.Request().Context(), store.Activity{
		UserID:        userID,
		ContactID:     req.ContactID,
		OpportunityID: req.OpportunityID,
		Type:          req.Type,
		Subject:       req.Subject,
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, IDResponse{ID: id})
}
