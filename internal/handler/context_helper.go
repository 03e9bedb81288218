package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/middleware"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

// requireClaims fetches the caller, writing 401 when the route was mounted without JWT.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// bindJSON decodes the body into dst, writing 400 on malformed input.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, size
}

func respondWithMeta(c *gin.Context, data interface{}, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, data, middleware.ExtractMeta(c))
}
