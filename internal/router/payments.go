package router

import (
	"io"
	"net/http"

	"store_api/internal/middleware"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds what is read from the provider before verification.
const maxWebhookBody = 1 << 20

func getPayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, valid := queryID(c, "oid")
		if !valid {
			return
		}
		p, err := d.Payments.GetPaymentForOrder(c.Request.Context(), middleware.CurrentUser(c).ID, oid)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Payment retrieved successfully.", p)
	}
}

func createPayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := queryID(c, "id")
		if !valid {
			return
		}
		intent, err := d.Payments.CreatePaymentIntent(c.Request.Context(), middleware.CurrentUser(c).ID, id)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "PayPal order created successfully.", intent)
	}
}

func capturePayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		poid := c.Query("poid")
		if poid == "" {
			fail(c, http.StatusUnprocessableEntity, "Validation Error.", map[string]string{"poid": "is required"})
			return
		}
		res, err := d.Payments.CapturePayment(c.Request.Context(), poid)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		if res.NeedsReview {
			c.AbortWithStatusJSON(http.StatusConflict, envelope{
				Message: "Payment recorded, but the order is " + string(res.Order.Status) + " and needs review.",
				Data:    res,
			})
			return
		}
		msg := "Payment captured successfully."
		if res.AlreadyReconciled {
			msg = "Payment already captured."
		}
		ok(c, msg, res)
	}
}

func paypalWebhook(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			fail(c, http.StatusBadRequest, "Unreadable body.", nil)
			return
		}
		res, err := d.Payments.HandleWebhook(c.Request.Context(), c.Request.Header, body)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		if res == nil {
			ok(c, "Event ignored.", nil)
			return
		}
		if res.NeedsReview {
			ok(c, "Event recorded for review.", res)
			return
		}
		ok(c, "Event processed.", res)
	}
}
