package router

import (
	"net/http"
	"strconv"

	"store_api/internal/middleware"
	"store_api/internal/users"

	"github.com/gin-gonic/gin"
)

func register(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in users.RegisterInput
		if !bindJSON(c, &in) {
			return
		}
		sess, err := d.Users.Register(c.Request.Context(), in)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "User registered successfully.", sess)
	}
}

func login(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in users.LoginInput
		if !bindJSON(c, &in) {
			return
		}
		sess, err := d.Users.Login(c.Request.Context(), in)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Logged in successfully.", sess)
	}
}

func profile(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := d.Users.Profile(c.Request.Context(), middleware.CurrentUser(c).ID)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "User data retrieved successfully.", u)
	}
}

func updateProfile(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch users.ProfilePatch
		if !bindJSON(c, &patch) {
			return
		}
		u, err := d.Users.UpdateProfile(c.Request.Context(), middleware.CurrentUser(c).ID, patch)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Profile updated successfully.", u)
	}
}

func listUsers(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := users.UserFilter{
			Search:  c.Query("search"),
			Role:    c.Query("role"),
			Page:    queryInt(c, "page", 1),
			PerPage: queryInt(c, "per_page", 10),
		}
		if raw := c.Query("is_active"); raw != "" {
			active, err := strconv.ParseBool(raw)
			if err != nil {
				fail(c, http.StatusUnprocessableEntity, "Validation Error.", map[string]string{"is_active": "must be a boolean"})
				return
			}
			f.IsActive = &active
		}
		page, err := d.Users.ListUsers(c.Request.Context(), f)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Users retrieved successfully.", page)
	}
}

func disableUser(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := queryID(c, "id")
		if !valid {
			return
		}
		u, err := d.Users.DisableUser(c.Request.Context(), middleware.CurrentUser(c).ID, id)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "User disabled successfully.", u)
	}
}

func listProducts(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := d.Catalog.ListProducts(c.Request.Context())
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Products retrieved successfully.", list)
	}
}

func getProduct(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := parseUint(c.Param("id"))
		if err != nil {
			fail(c, http.StatusNotFound, "Product not found.", nil)
			return
		}
		p, err := d.Catalog.GetProduct(c.Request.Context(), id)
		if err != nil {
			writeError(c, d.Logger, err)
			return
		}
		ok(c, "Product retrieved successfully.", p)
	}
}
