package v1

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v5"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/server/agent"
)

type registerItemRequest struct {
	Name             string   `json:"name"`
	Category         string   `json:"category"`
	Description      string   `json:"description"`
	Price            *float64 `json:"price"`
	ConfirmDuplicate bool     `json:"confirmDuplicate"`
}

type searchResponse struct {
	Query    string           `json:"query"`
	Semantic bool             `json:"semantic"`
	Items    []agent.ItemView `json:"items"`
}

const feedLimit = 50

func (s *APIV1Service) registerCommerceRoutes(e *echo.Echo) {
	e.GET("/api/v1/items", s.searchItems)
	e.POST("/api/v1/items", s.registerItem)
	e.GET("/api/v1/items/:id", s.getItem)
	e.GET("/api/v1/cart", s.getCart)
	e.DELETE("/api/v1/cart", s.clearCart)
	e.GET("/api/v1/purchase-requests", s.listPurchaseRequests)
	e.GET("/api/v1/purchase-requests/:uid", s.getPurchaseRequest)
	e.GET("/api/v1/feeds/purchase-requests.atom", s.purchaseRequestFeed)
}

// runTool executes a tool with the same validation the agent applies.
func (s *APIV1Service) runTool(c *echo.Context, owner, name string, args map[string]any) (*agent.ToolResult, error) {
	tool := agent.NewTools(s.Agent.Commerce(), owner)[name]
	return tool.Execute(c.Request().Context(), args)
}

func (s *APIV1Service) searchItems(c *echo.Context) error {
	userID, ok, err := s.currentUser(c)
	if !ok {
		return err
	}
	args := map[string]any{"query": c.QueryParam("query")}
	for _, name := range []string{"minPrice", "maxPrice"} {
		if v := c.QueryParam(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return s.fail(c, userID, apperr.FieldValidation(name, "must be a number"))
			}
			args[name] = f
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s.fail(c, userID, apperr.FieldValidation("limit", "must be an integer"))
		}
		args["limit"] = n
	}

	result, err := s.runTool(c, userID, agent.ToolSearchCatalog, args)
	if err != nil {
		return s.fail(c, userID, err)
	}
	resp := searchResponse{Query: result.Query, Semantic: result.Semantic, Items: make([]agent.ItemView, 0, len(result.Items))}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, agent.NewItemView(item))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) getItem(c *echo.Context) error {
	userID, ok, err := s.currentUser(c)
	if !ok {
		return err
	}
	result, err := s.runTool(c, userID, agent.ToolGetItemDetails, map[string]any{"itemId": c.Param("id")})
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.JSON(http.StatusOK, agent.NewItemView(result.Item))
}

func (s *APIV1Service) registerItem(c *echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}
	var req registerItemRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, userID, apperr.Validation("request body must be a JSON object"))
	}
	args := map[string]any{
		"name":             req.Name,
		"category":         req.Category,
		"confirmDuplicate": req.ConfirmDuplicate,
	}
	if req.Description != "" {
		args["description"] = req.Description
	}
	if req.Price != nil {
		args["price"] = *req.Price
	}
	result, err := s.runTool(c, userID, agent.ToolRegisterItem, args)
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.JSON(http.StatusCreated, agent.NewItemView(result.Item))
}

func (s *APIV1Service) getCart(c *echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}
	result, err := s.runTool(c, userID, agent.ToolViewCart, map[string]any{})
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.JSON(http.StatusOK, agent.NewCartView(result.Cart))
}

func (s *APIV1Service) clearCart(c *echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}
	cart, err := s.Agent.Commerce().Carts.Clear(c.Request().Context(), userID)
	if err != nil {
		return s.fail(c, userID, err)
	}
	slog.Info("cart cleared", "user", userID)
	return c.JSON(http.StatusOK, agent.NewCartView(cart))
}

func (s *APIV1Service) listPurchaseRequests(c *echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}
	list, err := s.Agent.Commerce().Purchasing.ListPurchaseRequests(c.Request().Context(), userID, queryInt(c, "limit"))
	if err != nil {
		return s.fail(c, userID, err)
	}
	resp := make([]agent.PurchaseRequestView, 0, len(list))
	for _, pr := range list {
		resp = append(resp, agent.NewPurchaseRequestView(pr))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) getPurchaseRequest(c *echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}
	pr, err := s.Agent.Commerce().Purchasing.GetPurchaseRequest(c.Request().Context(), userID, c.Param("uid"))
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.JSON(http.StatusOK, agent.NewPurchaseRequestView(pr))
}

func (s *APIV1Service) purchaseRequestFeed(c *echo.Context) error {
	userID, ok, err := s.requireUser(c)
	if !ok {
		return err
	}
	list, err := s.Agent.Commerce().Purchasing.ListPurchaseRequests(c.Request().Context(), userID, feedLimit)
	if err != nil {
		return s.fail(c, userID, err)
	}

	scheme := "http"
	if c.Request().TLS != nil {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s", scheme, c.Request().Host)
	feed := &feeds.Feed{
		Title:       "Purchase requests",
		Link:        &feeds.Link{Href: base + "/api/v1/purchase-requests"},
		Description: "Purchase requests submitted by " + userID,
		Created:     time.Now(),
	}
	for _, pr := range list {
		created := time.Unix(pr.CreatedTs, 0)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          pr.UID,
			Title:       fmt.Sprintf("%s: %d line(s), $%.2f", pr.RequestNumber, len(pr.Items), pr.TotalCost),
			Link:        &feeds.Link{Href: base + "/api/v1/purchase-requests/" + pr.UID},
			Description: fmt.Sprintf("Status %s, total $%.2f", pr.Status, pr.TotalCost),
			Created:     created,
			Updated:     created,
		})
	}
	if len(list) > 0 {
		feed.Updated = time.Unix(list[0].CreatedTs, 0)
	}
	atom, err := feed.ToAtom()
	if err != nil {
		return s.fail(c, userID, err)
	}
	return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(atom))
}
