package handler

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/validator"
)

// UUIDParam parses the named path parameter.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, errors.BadRequest("invalid "+name, err)
	}
	return id, nil
}

// DateQuery parses a YYYY-MM-DD query parameter, falling back to def when
// the parameter is absent.
func DateQuery(c *gin.Context, name string, def time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	date, err := model.ParseDate(raw)
	if err != nil {
		return time.Time{}, errors.BadRequest("invalid "+name+", expected YYYY-MM-DD", err)
	}
	return date, nil
}

// BoolQuery parses an optional boolean query parameter.
func BoolQuery(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errors.BadRequest("invalid "+name, err)
	}
	return v, nil
}

// BindJSON decodes the request body. Malformed JSON is a bad request; failed
// binding rules are validation errors naming the offending fields.
func BindJSON(c *gin.Context, dst interface{}) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.Errors
	if stderrors.As(validator.Translate(err), &fieldErrs) {
		return errors.Validation(fieldErrs.Error(), err)
	}
	return errors.BadRequest("invalid request body", err)
}
