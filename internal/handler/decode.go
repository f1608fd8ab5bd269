package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"gta-grind-tracker/pkg/apierror"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apierror.BadRequest("invalid JSON")
	}
	return nil
}

// activityRequest is the body of the start endpoints.
type activityRequest struct {
	ActivityID string `json:"activity_id"`
}

func (req activityRequest) validate() error {
	if req.ActivityID == "" {
		return apierror.ValidationError("activity_id is required",
			apierror.FieldError{Field: "activity_id", Message: "is required"})
	}
	return nil
}

// moneyRequest is the body of the confirm endpoints.
type moneyRequest struct {
	MoneyEarned int64 `json:"money_earned"`
}

// timerRequest is the body of the cooldown and resupply endpoints.
type timerRequest struct {
	ActivityID string  `json:"activity_id"`
	Minutes    float64 `json:"minutes"`
}
