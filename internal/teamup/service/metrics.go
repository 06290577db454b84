package service

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamup",
		Name:      "team_transitions_total",
		Help:      "Successful team lifecycle transitions.",
	}, []string{"transition"})

	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "teamup",
		Name:      "team_conflicts_total",
		Help:      "Team mutations refused because of the team's current state.",
	}, []string{"reason"})
)

// observe counts err when it is a conflict and returns it unchanged.
func observe(err error) error {
	var se *Error
	if errors.As(err, &se) && se.Kind == KindConflict {
		conflictsTotal.WithLabelValues(reasonLabel(se.Message)).Inc()
	}
	return err
}

func reasonLabel(msg string) string {
	return strings.ReplaceAll(strings.ToLower(msg), " ", "_")
}
