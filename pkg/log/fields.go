package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor, set by pkg/middleware
	FieldUserID = "user_id"
	FieldRole   = "role"

	// Chat
	FieldPeerID    = "peer_id"
	FieldMessageID = "message_id"
	FieldRoom      = "room"
	FieldClientID  = "client_id"

	FieldService = "service"

	// gRPC
	FieldGRPCMethod = "grpc_method"
	FieldGRPCCode   = "grpc_code"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
