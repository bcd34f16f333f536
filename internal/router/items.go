package router

import (
	"store_api/internal/middleware"
	"store_api/internal/orders"

	"github.com/gin-gonic/gin"
)

// getOrderItems returns one line with ?id=, otherwise the lines of order ?oid=.
func getOrderItems(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := middleware.CurrentUser(c)
		if c.Query("id") != "" {
			id, valid := queryID(c, "id")
			if !valid {
				return
			}
			item, err := d.Orders.GetOrderItem(c.Request.Context(), u.ID, id)
			if err != nil {
				writeError(c, d.Logger, err)
				return
			}
			ok(c, "Order item retrieved successfully.", item)
			return
		}
		oid, valid := queryID(c, "oid")
		if !valid {
			return
		}
		items, err := d.Orders.ListOrderItems(c.Request.Context(), u.ID, oid)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order items retrieved successfully.", items)
	}
}

func addOrderItem(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in orders.AddItemInput
		if !bindJSON(c, &in) {
			return
		}
		item, err := d.Orders.AddOrderItem(c.Request.Context(), middleware.CurrentUser(c).ID, in)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order item added successfully.", item)
	}
}

func updateOrderItem(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := queryID(c, "id")
		if !valid {
			return
		}
		var patch orders.ItemPatch
		if !bindJSON(c, &patch) {
			return
		}
		item, err := d.Orders.UpdateOrderItem(c.Request.Context(), middleware.CurrentUser(c).ID, id, patch)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order item updated successfully.", item)
	}
}

func removeOrderItem(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := queryID(c, "id")
		if !valid {
			return
		}
		if err := d.Orders.RemoveOrderItem(c.Request.Context(), middleware.CurrentUser(c).ID, id); err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Order item deleted successfully.", nil)
	}
}
