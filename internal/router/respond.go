package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"store_api/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// envelope is the shape of every API response.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ok(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, envelope{Success: true, Message: msg, Data: data})
}

func fail(c *gin.Context, status int, msg string, fields map[string]string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: msg, Errors: fields})
}

// writeError maps a service error onto the envelope. Unexpected errors are logged
// and hidden behind a generic message.
func writeError(c *gin.Context, log *slog.Logger, err error) {
	var (
		ve  *apperr.ValidationError
		ie  *apperr.InsufficientInventoryError
		nf  *apperr.NotFoundError
		ge  *apperr.GatewayError
		pnc *apperr.PaymentNotCompletedError
		ocf *apperr.OrderCreationFailedError
	)
	switch {
	case errors.As(err, &ve):
		fail(c, http.StatusUnprocessableEntity, ve.Message, ve.Fields)
	case errors.As(err, &ie):
		fail(c, http.StatusUnprocessableEntity, "Insufficient inventory for product: "+ie.ProductName, nil)
	case errors.As(err, &nf):
		fail(c, http.StatusNotFound, titleCase(nf.Resource)+" not found.", nil)
	case errors.As(err, &pnc):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, envelope{
			Message: "Payment was not completed.",
			Data:    gin.H{"status": pnc.Status},
		})
	case errors.As(err, &ge):
		log.WarnContext(c.Request.Context(), "payment gateway error", "op", ge.Op, "err", ge.Err)
		fail(c, http.StatusBadGateway, "Payment provider unavailable, please retry.", nil)
	case errors.Is(err, apperr.ErrConflict):
		fail(c, http.StatusConflict, conflictMessage(err), nil)
	case errors.Is(err, apperr.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, "Unauthenticated.", nil)
	case errors.Is(err, apperr.ErrForbidden):
		fail(c, http.StatusForbidden, "Forbidden.", nil)
	case errors.As(err, &ocf):
		log.ErrorContext(c.Request.Context(), "order creation failed", "err", ocf.Err)
		fail(c, http.StatusInternalServerError, "Failed to create order.", nil)
	default:
		log.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "err", err)
		fail(c, http.StatusInternalServerError, "Internal server error.", nil)
	}
}

func conflictMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), apperr.ErrConflict.Error()+": ")
	if msg == "" || msg == apperr.ErrConflict.Error() {
		return "Conflict."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// bindJSON binds and validates the body, writing a 422 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusUnprocessableEntity, "Validation Error.", bindErrors(err))
		return false
	}
	return true
}

func bindErrors(err error) map[string]string {
	var (
		verrs     validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &verrs):
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fieldPath(fe.Namespace())] = describe(fe)
		}
		return out
	case errors.As(err, &typeErr):
		return map[string]string{typeErr.Field: "has the wrong type"}
	case errors.As(err, &syntaxErr):
		return map[string]string{"body": "is not valid JSON"}
	default:
		return map[string]string{"body": err.Error()}
	}
}

var indexRe = regexp.MustCompile(`\[(\d+)\]`)

// fieldPath turns "PlaceOrderInput.order_items[0].quantity" into "order_items.0.quantity".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return indexRe.ReplaceAllString(ns, ".$1")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("may not be greater than %s characters", fe.Param())
		}
		return "may not be greater than " + fe.Param()
	case "len":
		return fmt.Sprintf("must be %s characters", fe.Param())
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

var registerTagName sync.Once

// useJSONFieldNames makes validator report JSON names instead of Go field names.
func useJSONFieldNames() {
	registerTagName.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// queryID parses a required positive integer query parameter.
func queryID(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		fail(c, http.StatusUnprocessableEntity, "Validation Error.", map[string]string{name: "is required"})
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		fail(c, http.StatusUnprocessableEntity, "Validation Error.", map[string]string{name: "must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return n
}
