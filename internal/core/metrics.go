package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bookcrossing/internal/apperr"
)

var tracer = otel.Tracer("bookcrossing.core")

var (
	// transitionsTotal liczy przejścia cyklu życia.
	// Etykiety: transition (create, release, take, ...), outcome (ok albo rodzaj błędu)
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookcrossing",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Liczba przejść cyklu życia książek według wyniku",
	}, []string{"transition", "outcome"})

	transitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookcrossing",
		Subsystem: "lifecycle",
		Name:      "transition_duration_seconds",
		Help:      "Czas wykonania przejścia cyklu życia w sekundach",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"transition"})
)

const (
	transitionCreate  = "create"
	transitionRelease = "release"
	transitionTake    = "take"
	transitionReserve = "reserve"
	transitionCancel  = "cancel_reservation"
	transitionDelete  = "delete"
)

const outcomeOK = "ok"

// outcomeOf zwraca etykietę wyniku: "ok", rodzaj błędu apperr albo "error"
func outcomeOf(err error) string {
	if err == nil {
		return outcomeOK
	}
	if kind := apperr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}

// observe otacza przejście spanem, metrykami i wpisem w logu
func (e *Engine) observe(ctx context.Context, transition, bookID, userID string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "lifecycle."+transition,
		trace.WithAttributes(
			attribute.String("book.id", bookID),
			attribute.String("user.id", userID),
		))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	transitionsTotal.WithLabelValues(transition, outcome).Inc()
	transitionDuration.WithLabelValues(transition).Observe(elapsed.Seconds())
	span.SetAttributes(attribute.String("lifecycle.outcome", outcome))

	attrs := []any{
		slog.String("transition", transition),
		slog.String("book_id", bookID),
		slog.String("user_id", userID),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	}
	switch {
	case err == nil:
		e.logger.InfoContext(ctx, "przejście książki", attrs...)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), apperr.KindOf(err) != "":
		span.SetStatus(codes.Error, outcome)
		e.logger.WarnContext(ctx, "przejście książki odrzucone", append(attrs, slog.String("error", err.Error()))...)
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.ErrorContext(ctx, "błąd przejścia książki", append(attrs, slog.String("error", err.Error()))...)
	}
	return err
}
