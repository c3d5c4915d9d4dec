package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/chepyr/organism/shared/models"
)

var errBadTime = errors.New("from and to must be RFC3339 timestamps")

// optionalTime tells an absent field apart from an explicit null or "".
type optionalTime struct {
	set   bool
	value *time.Time
}

func (o *optionalTime) UnmarshalJSON(b []byte) error {
	o.set = true
	if bytes.Equal(b, []byte("null")) {
		o.value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %v", errBadTime, err)
	}
	if s == "" {
		o.value = nil
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadTime, err)
	}
	o.value = &t
	return nil
}

type createInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	From        optionalTime `json:"from"`
	To          optionalTime `json:"to"`
}

type updateInput struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Completed   *bool        `json:"completed"`
	From        optionalTime `json:"from"`
	To          optionalTime `json:"to"`
}

// apply copies the fields present in the request onto task.
func (in *updateInput) apply(task *models.Task) {
	if in.Title != nil {
		task.Title = *in.Title
	}
	if in.Description != nil {
		task.SetDescription(*in.Description)
	}
	if in.Completed != nil {
		task.Completed = *in.Completed
	}
	if in.From.set {
		task.From = in.From.value
	}
	if in.To.set {
		task.To = in.To.value
	}
}

func isJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// decodeJSON reports the problem to the client and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !isJSONContentType(r) {
		sendValidationError(w, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, errBadTime) {
			sendValidationError(w, errBadTime.Error())
			return false
		}
		sendValidationError(w, "Invalid JSON body")
		return false
	}
	return true
}

// validationMessage maps model errors to what the client sees.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyTitle):
		return "Please, fill out the title"
	case errors.Is(err, models.ErrTitleTooLong),
		errors.Is(err, models.ErrDescTooLong),
		errors.Is(err, models.ErrInvalidWindow):
		return err.Error()
	default:
		return "Invalid task"
	}
}
