package ports

//go:generate mockgen -source=flights.go -destination=../mocks/flights-mocks.go -package=mocks FlightEvaluator

import (
	"context"

	"checkout/internal/pidl/models"
)

// FlightEvaluator decides whether a named feature flight is on for a request.
// Evaluation is a pure function of its inputs; it must not block on I/O.
type FlightEvaluator interface {
	IsEnabled(ctx context.Context, flight string, rc models.Context) bool
}
