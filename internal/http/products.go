package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/repository"
	"github.com/jmehdipour/order-pipeline/internal/util"
)

type productReq struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

func (r *productReq) validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "name is required"
	}
	if r.Price.IsNegative() {
		return "price must not be negative"
	}
	if r.Stock < 0 {
		return "stock must not be negative"
	}
	return ""
}

func listProductsHandler(products repository.ProductsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := products.List(c.Request().Context())
		if err != nil {
			log.Errorf("list products failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, list)
	}
}

func getProductHandler(products repository.ProductsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := products.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("get product failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if p == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "product not found"})
		}
		return c.JSON(http.StatusOK, p)
	}
}

func createProductHandler(products repository.ProductsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req productReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if msg := req.validate(); msg != "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
		}

		p := model.Product{
			ID:    util.New(),
			Name:  strings.TrimSpace(req.Name),
			Price: req.Price,
			Stock: req.Stock,
		}
		if err := products.Insert(c.Request().Context(), p); err != nil {
			log.Errorf("create product failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func updateProductHandler(products repository.ProductsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req productReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if msg := req.validate(); msg != "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
		}

		p, err := products.GetByID(c.Request().Context(), c.Param("id"))
		if err != nil {
			log.Errorf("load product failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if p == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "product not found"})
		}

		p.Name = strings.TrimSpace(req.Name)
		p.Price = req.Price
		p.Stock = req.Stock
		if err := products.Update(c.Request().Context(), *p); err != nil {
			log.Errorf("update product failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, p)
	}
}

func deleteProductHandler(products repository.ProductsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := products.Delete(c.Request().Context(), c.Param("id")); err != nil {
			log.Errorf("delete product failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.NoContent(http.StatusNoContent)
	}
}
