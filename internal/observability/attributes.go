// Package observability provides the service's OpenTelemetry metrics,
// exported in Prometheus format.
package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrModel     = "model"
	attrJobStatus = "job_status"
	attrPath      = "path"
	attrOutcome   = "outcome"
	attrOperation = "operation"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

// routeAttr takes the router's pattern (/jobs/{jobID}) rather than the raw
// URL so job ids never become label values.
func routeAttr(pattern string) attribute.KeyValue {
	if pattern == "" {
		pattern = "unmatched"
	}
	return attribute.String(attrRoute, pattern)
}

// statusAttr groups status codes: 200-299 -> 2xx, 400-499 -> 4xx.
func statusAttr(code int) attribute.KeyValue {
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func modelAttr(model string) attribute.KeyValue {
	return attribute.String(attrModel, model)
}

func jobStatusAttr(status string) attribute.KeyValue {
	return attribute.String(attrJobStatus, status)
}

// pathAttr names the code path that resolved a job: submit, callback,
// inline_poll, sweeper or cancel.
func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, path)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func operationAttr(op string) attribute.KeyValue {
	return attribute.String(attrOperation, op)
}
