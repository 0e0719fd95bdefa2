package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Workflow transition attempts by edge and result",
		},
		[]string{"from", "to", "result"},
	)

	contentVersionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_versions_created_total",
			Help: "Content versions created, by owner type and reason",
		},
		[]string{"owner_type", "reason"},
	)

	integrityIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_integrity_issues_total",
			Help: "Version pointer integrity issues detected, by code and whether repaired",
		},
		[]string{"code", "repaired"},
	)
)
