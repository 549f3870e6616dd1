// Package observability provides metrics for sample API calls and DLP job waits.
package observability

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys
const (
	attrService = "service"
	attrMethod  = "method"
	attrSuccess = "success"
	attrOutcome = "outcome"
)

func serviceAttr(service string) attribute.KeyValue {
	return attribute.String(attrService, service)
}

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, normalizeMethod(method))
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

// normalizeMethod strips a fully qualified RPC prefix so that
// "google.privacy.dlp.v2.DlpService/CreateDlpJob" and "CreateDlpJob"
// land in the same series.
func normalizeMethod(method string) string {
	if i := strings.LastIndexByte(method, '/'); i >= 0 {
		return method[i+1:]
	}
	return method
}

// WithService returns a metric option with the service attribute.
func WithService(service string) metric.MeasurementOption {
	return metric.WithAttributes(serviceAttr(service))
}

// WithOutcome returns a metric option with the outcome attribute.
func WithOutcome(outcome string) metric.MeasurementOption {
	return metric.WithAttributes(outcomeAttr(outcome))
}
