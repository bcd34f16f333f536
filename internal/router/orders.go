package router

import (
	"strconv"

	"store_api/internal/catalog"
	"store_api/internal/middleware"
	"store_api/internal/model"
	"store_api/internal/orders"

	"github.com/gin-gonic/gin"
)

// getOrders returns one order with ?id=, otherwise a page of the caller's orders.
func getOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := middleware.CurrentUser(c)
		if c.Query("id") != "" {
			id, valid := queryID(c, "id")
			if !valid {
				return
			}
			o, err := d.Orders.GetOrder(c.Request.Context(), u.ID, id)
			if err != nil {
				writeError(c, d.Logger, err)
				return
			}
			ok(c, "Order retrieved successfully.", o)
			return
		}
		page, err := d.Orders.ListOrders(c.Request.Context(), u.ID, queryInt(c, "page", 1), queryInt(c, "per_page", 15))
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Orders retrieved successfully.", page)
	}
}

func placeOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in orders.PlaceOrderInput
		if !bindJSON(c, &in) {
			return
		}
		in.UserID = middleware.CurrentUser(c).ID
		o, err := d.Orders.PlaceOrder(c.Request.Context(), in)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order created successfully.", o)
	}
}

func updateOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := queryID(c, "id")
		if !valid {
			return
		}
		var in orders.UpdateOrderInput
		if !bindJSON(c, &in) {
			return
		}
		o, err := d.Orders.UpdateOrder(c.Request.Context(), middleware.CurrentUser(c).ID, id, in)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order updated successfully.", o)
	}
}

func deleteOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := queryID(c, "id")
		if !valid {
			return
		}
		if err := d.Orders.DeleteOrder(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order deleted successfully.", nil)
	}
}

func getShipping(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, valid := queryID(c, "oid")
		if !valid {
			return
		}
		sh, err := d.Orders.GetShipping(c.Request.Context(), middleware.CurrentUser(c).ID, oid)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Shipping retrieved successfully.", sh)
	}
}

func createShipping(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in orders.ShippingInput
		if !bindJSON(c, &in) {
			return
		}
		sh, err := d.Orders.CreateShipping(c.Request.Context(), middleware.CurrentUser(c).ID, in)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Shipping created successfully.", sh)
	}
}

func updateShipping(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, valid := queryID(c, "oid")
		if !valid {
			return
		}
		var patch orders.ShippingPatch
		if !bindJSON(c, &patch) {
			return
		}
		sh, err := d.Orders.UpdateShipping(c.Request.Context(), middleware.CurrentUser(c).ID, oid, patch)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Shipping updated successfully.", sh)
	}
}

func deleteShipping(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, valid := queryID(c, "oid")
		if !valid {
			return
		}
		if err := d.Orders.DeleteShipping(c.Request.Context(), middleware.CurrentUser(c).ID, oid); err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Shipping deleted successfully.", nil)
	}
}

func createProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in catalog.ProductInput
		if !bindJSON(c, &in) {
			return
		}
		p, err := d.Catalog.CreateProduct(c.Request.Context(), in)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Product created successfully.", p)
	}
}

func listAllOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := d.Orders.ListAllOrders(c.Request.Context(), queryInt(c, "page", 1), queryInt(c, "per_page", 15))
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Orders retrieved successfully.", page)
	}
}

func orderSummary(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := d.Orders.Summary(c.Request.Context())
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order summary retrieved successfully.", sum)
	}
}

func updateOrderStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			OrderID uint              `json:"order_id" binding:"required"`
			Status  model.OrderStatus `json:"status" binding:"required"`
		}
		if !bindJSON(c, &in) {
			return
		}
		o, err := d.Orders.UpdateOrderStatus(c.Request.Context(), in.OrderID, in.Status)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order status updated successfully.", o)
	}
}

func parseUint(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	return uint(n), err
}
