/*
Package tracing keeps an OpenTelemetry tracer in a context.Context instead of a package global.

Every transport request opens a span through Start; NewProvider builds the exporters
selected by configuration.
*/
package tracing
