package rest

import (
	"context"
	stderrors "errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/infrastructure/telemetry"
	assignmentsvc "github.com/fairdial/leadline-backend/internal/service/assignment"
	callersvc "github.com/fairdial/leadline-backend/internal/service/callers"
	leadsvc "github.com/fairdial/leadline-backend/internal/service/leads"
)

// IngestLimiter throttles webhook deliveries per source. A nil limiter
// admits everything.
type IngestLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Handler carries the service dependencies for every route.
type Handler struct {
	assignments assignmentsvc.Service
	callers     callersvc.Service
	leads       leadsvc.Service

	limiter     IngestLimiter
	webhookAuth WebhookAuth
	validator   *validator.Validate
	tracer      trace.Tracer
}

// WebhookAuth configures ingestion protection. An empty Secret skips the
// header check, a zero RatePerMinute disables throttling.
type WebhookAuth struct {
	Secret        string
	RatePerMinute int
}

func NewHandler(
	assignments assignmentsvc.Service,
	callers callersvc.Service,
	leads leadsvc.Service,
	limiter IngestLimiter,
	webhookAuth WebhookAuth,
) *Handler {
	v := validator.New()
	// Report json field names in validation errors instead of Go names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		assignments: assignments,
		callers:     callers,
		leads:       leads,
		limiter:     limiter,
		webhookAuth: webhookAuth,
		validator:   v,
		tracer:      telemetry.Tracer("api.rest"),
	}
}

func (h *Handler) validate(v interface{}) error {
	err := h.validator.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.NewValidationError("VALIDATION_ERROR", err.Error())
	}

	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return errors.NewValidationError("VALIDATION_ERROR", "request validation failed").
		WithDetails(details)
}

func parseUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", name+" must be a UUID")
	}
	return id, nil
}
