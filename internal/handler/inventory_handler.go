package handler

import (
	"net/http"

	"partsreserve/internal/middleware"
	"partsreserve/internal/model"
	"partsreserve/internal/service"
	"partsreserve/pkg/pagination"
	"partsreserve/pkg/response"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	ledgerService service.LedgerService
}

func NewInventoryHandler(ledgerService service.LedgerService) *InventoryHandler {
	return &InventoryHandler{ledgerService: ledgerService}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	inventory := router.Group("/products/:id")
	inventory.Use(middleware.RequireRole(model.RoleAdmin))
	{
		inventory.GET("/movements", h.ListMovements)
		inventory.POST("/stock-adjustments", h.AdjustStock)
	}
}

// ListMovements returns the stock ledger of a product
// @Summary      List stock movements
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        id     path      string  true   "Product ID"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      404    {object}  response.Response
// @Router       /api/products/{id}/movements [get]
func (h *InventoryHandler) ListMovements(c *gin.Context) {
	p := pagination.Parse(c)

	movements, meta, err := h.ledgerService.ListMovements(c.Request.Context(), c.Param("id"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"movements": movements,
		"meta":      meta,
	}))
}

// AdjustStock records a manual stock movement
// @Summary      Adjust stock
// @Description  Records IN, RETURN, ADJUSTMENT_IN, ADJUSTMENT_OUT, DAMAGED or LOST against a product.
// @Tags         inventory
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Product ID"
// @Param        payload  body      service.StockAdjustmentRequest  true  "Adjustment payload"
// @Success      201      {object}  response.Response{data=model.InventoryMovement}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/products/{id}/stock-adjustments [post]
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}

	var req service.StockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	movement, err := h.ledgerService.AdjustStock(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, movement))
}
