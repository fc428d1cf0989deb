package tracing

// Span attribute keys used by the sedar client
const (
	AttrKeySedarErrorCode  = "sedar.error.code"
	AttrKeySedarMethod     = "sedar.http.method"
	AttrKeySedarPath       = "sedar.http.path"
	AttrKeySedarStatus     = "sedar.http.status"
	AttrKeySedarSessionId  = "sedar.session.id"
	AttrKeySedarResource   = "sedar.resource.kind"
	AttrKeySedarResourceId = "sedar.resource.id"
	AttrKeySedarMultipart  = "sedar.http.multipart"
)

// ServiceName is reported as the otel service name.
const ServiceName = "sedar-client"
