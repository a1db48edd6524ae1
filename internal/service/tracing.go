package service

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/mealdash-next/internal/service")
