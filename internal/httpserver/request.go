package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/radiusdt/stayvalue/internal/models"
)

type lifecycleEventRequest struct {
	Stage          string     `json:"stage" validate:"required,lifecycle_stage"`
	CustomerID     string     `json:"customer_id" validate:"max=64"`
	BookingID      string     `json:"booking_id" validate:"max=64"`
	ListingID      string     `json:"listing_id" validate:"max=64"`
	BookingValue   float64    `json:"booking_value" validate:"gte=0"`
	Currency       string     `json:"currency" validate:"omitempty,len=3,alpha"`
	Email          string     `json:"email" validate:"omitempty,email"`
	Phone          string     `json:"phone" validate:"max=32"`
	FirstName      string     `json:"first_name" validate:"max=100"`
	LastName       string     `json:"last_name" validate:"max=100"`
	City           string     `json:"city" validate:"max=100"`
	Country        string     `json:"country" validate:"omitempty,len=2,alpha"`
	ClientIP       string     `json:"client_ip" validate:"omitempty,ip"`
	UserAgent      string     `json:"user_agent" validate:"max=512"`
	Fbc            string     `json:"fbc" validate:"max=256"`
	Fbp            string     `json:"fbp" validate:"max=256"`
	EventSourceURL string     `json:"event_source_url" validate:"omitempty,url"`
	OccurredAt     *time.Time `json:"occurred_at"`
}

func (req *lifecycleEventRequest) toEvent() *models.LifecycleEvent {
	ev := &models.LifecycleEvent{
		Stage:          models.Stage(req.Stage),
		CustomerID:     req.CustomerID,
		BookingID:      req.BookingID,
		ListingID:      req.ListingID,
		BookingValue:   req.BookingValue,
		Currency:       strings.ToUpper(req.Currency),
		Email:          req.Email,
		Phone:          req.Phone,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		City:           req.City,
		Country:        req.Country,
		ClientIP:       req.ClientIP,
		UserAgent:      req.UserAgent,
		Fbc:            req.Fbc,
		Fbp:            req.Fbp,
		EventSourceURL: req.EventSourceURL,
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = *req.OccurredAt
	}
	return ev
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("lifecycle_stage", func(fl validator.FieldLevel) bool {
		return models.Stage(fl.Field().String()).Valid()
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return strings.Trim(ip, "[]")
}
