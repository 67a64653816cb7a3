package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind parses the JSON body into dst and runs struct validation.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]any, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return apperrors.NewValidationError("validation failed", map[string]any{"fields": fields})
		}
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

// pageParams reads limit and offset query values. Out of range values are
// normalized by the repositories.
func pageParams(c *fiber.Ctx) (limit, offset int) {
	return queryInt(c, "limit", 20), queryInt(c, "offset", 0)
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	val := c.Query(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func queryList(c *fiber.Ctx, key string) []string {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func queryString(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}

// queryUUID reads an optional uuid query value, rejecting malformed ones
// before they reach the database.
func queryUUID(c *fiber.Ctx, key string) (*string, error) {
	val := queryString(c, key)
	if val == nil {
		return nil, nil
	}
	parsed, err := uuid.Parse(*val)
	if err != nil {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{
			"fields": map[string]any{key: "uuid"},
		})
	}
	canonical := parsed.String()
	return &canonical, nil
}
