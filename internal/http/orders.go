package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/jmehdipour/order-pipeline/internal/http/middleware"
	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/service/order"
)

type createOrderReq struct {
	Items []model.OrderItemRequest `json:"items"`
}

func createOrderHandler(orderSvc *order.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createOrderReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		cl, ok := middleware.ClientFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		o, err := orderSvc.Create(c.Request().Context(), cl.ID, req.Items)
		if err != nil {
			if errors.Is(err, order.ErrNoItems) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "order must contain at least one item"})
			}
			if errors.Is(err, order.ErrInvalidQuantity) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}
			var pnf *order.ProductNotFoundError
			if errors.As(err, &pnf) {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": pnf.Error()})
			}

			log.Errorf("create order failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusCreated, o)
	}
}

func getOrderHandler(orderSvc *order.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		cl, ok := middleware.ClientFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		o, err := orderSvc.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("get order failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if o == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "order not found"})
		}
		if cl.Role != model.RoleAdmin && o.ClientID != cl.ID {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}

		return c.JSON(http.StatusOK, o)
	}
}

func listOrdersHandler(orderSvc *order.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		cl, ok := middleware.ClientFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		orders, err := orderSvc.List(c.Request().Context(), cl.ID, cl.Role == model.RoleAdmin)
		if err != nil {
			log.Errorf("list orders failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		return c.JSON(http.StatusOK, orders)
	}
}
