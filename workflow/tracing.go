package workflow

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("pm_backend/workflow")
