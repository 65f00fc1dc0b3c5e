package http

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"conti/internal/core"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type createAccountRequest struct {
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	Budget      *core.Money `json:"budget"`
}

type createTransactionRequest struct {
	Value       *core.Money `json:"value"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
}

type setBalanceRequest struct {
	Value  *core.Money `json:"value"`
	Reason string      `json:"reason"`
}

// parseListOptions reads limit, offset and sort from the query. A missing
// limit means defaultLimit and larger limits are clamped to maxLimit;
// negative values are left for the core to reject.
func parseListOptions(c *gin.Context) (core.ListOptions, error) {
	opts := core.ListOptions{Limit: defaultLimit, Sort: c.Query("sort")}
	fields := map[string]string{}

	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["limit"] = "must be an integer"
		} else {
			opts.Limit = min(n, maxLimit)
		}
	}
	if v := strings.TrimSpace(c.Query("offset")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["offset"] = "must be an integer"
		} else {
			opts.Offset = n
		}
	}

	if len(fields) > 0 {
		return core.ListOptions{}, &core.ValidationError{Fields: fields}
	}
	return opts, nil
}

// bindJSON decodes the body into v and reports decoding problems as
// validation errors naming the offending field.
func bindJSON(c *gin.Context, v any) error {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return &core.ValidationError{Fields: map[string]string{field: "must be a " + jsonTypeName(typeErr.Type.String())}}
	case errors.Is(err, io.EOF):
		return &core.ValidationError{Fields: map[string]string{"body": "must be a JSON object"}}
	default:
		return &core.ValidationError{Fields: map[string]string{"body": err.Error()}}
	}
}

func jsonTypeName(goType string) string {
	switch goType {
	case "string":
		return "string"
	case "bool":
		return "boolean"
	default:
		return "valid value"
	}
}

func (r createAccountRequest) input() core.CreateAccountInput {
	return core.CreateAccountInput{Name: r.Name, Description: r.Description, Budget: r.Budget}
}

func (r createTransactionRequest) input() core.NewTransaction {
	return core.NewTransaction{Value: r.Value, Type: strings.TrimSpace(r.Type), Description: strings.TrimSpace(r.Description)}
}
