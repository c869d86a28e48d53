// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
	SecurityAdmin                       // Access token with ADMIN role required
)

// EndpointSecurityConfig maps "METHOD path-template" routes to their required security level.
// gRPC methods use the pseudo-method GRPC and the full method name.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health - Public
	"GET /healthz": SecurityPublic,

	// Evidence files are served by opaque key
	"GET /files/{key:.+}": SecurityPublic,

	// Queues - Admin
	"GET /api/v1/queues/approval": SecurityAdmin,
	"GET /api/v1/queues/returns":  SecurityAdmin,
	"GET /api/v1/queues/history":  SecurityAdmin,

	// Borrowing requests - Admin
	"GET /api/v1/requests/{id:[0-9]+}":          SecurityAdmin,
	"POST /api/v1/requests/{id:[0-9]+}/approve": SecurityAdmin,
	"POST /api/v1/requests/{id:[0-9]+}/reject":  SecurityAdmin,

	// Return inspection - Admin
	"POST /api/v1/inspections/{id:[0-9]+}":           SecurityAdmin,
	"GET /api/v1/inspections/{id:[0-9]+}":            SecurityAdmin,
	"DELETE /api/v1/inspections/{id:[0-9]+}":         SecurityAdmin,
	"PUT /api/v1/inspections/{id:[0-9]+}/damage":     SecurityAdmin,
	"POST /api/v1/inspections/{id:[0-9]+}/evidence":  SecurityAdmin,
	"PUT /api/v1/inspections/{id:[0-9]+}/policies":   SecurityAdmin,
	"POST /api/v1/inspections/{id:[0-9]+}/submit":    SecurityAdmin,
	"GET /api/v1/penalty-policies":                   SecurityAdmin,
	"GET /api/v1/penalties/{id:[0-9]+}/details":      SecurityAdmin,
	"GET /api/v1/penalties/unresolved":               SecurityAdmin,
	"GET /api/v1/kits/{id:[0-9]+}":                   SecurityAdmin,
	"GET /api/v1/requests/{id:[0-9]+}/refund-status": SecurityAdmin,

	// Account views - Access
	"GET /api/v1/me/fines":                           SecurityAccess,
	"GET /api/v1/me/notifications":                   SecurityAccess,
	"POST /api/v1/me/notifications/{id:[0-9]+}/read": SecurityAccess,
	"GET /api/v1/me/wallet":                          SecurityAccess,
	"GET /api/v1/me/transactions":                    SecurityAccess,

	// Realtime
	"GET /ws": SecurityAccess,

	// gRPC probes are public, reflection is for operators
	"GRPC /grpc.health.v1.Health/Check":                                   SecurityPublic,
	"GRPC /grpc.health.v1.Health/List":                                    SecurityPublic,
	"GRPC /grpc.health.v1.Health/Watch":                                   SecurityPublic,
	"GRPC /grpc.reflection.v1.ServerReflection/ServerReflectionInfo":      SecurityAdmin,
	"GRPC /grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo": SecurityAdmin,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(method, pathTemplate string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[method+" "+pathTemplate]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAdmin
}
