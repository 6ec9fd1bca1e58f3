package interfaces

// Authenticator is C1: validates a presented token against a configured set by exact string
// equality (SPEC_FULL.md §5.1). Implemented by service.staticTokenAuthenticator. Called from
// service.serviceRegistry.RegisterDirect/RegisterSession and service.Session on ConnectionRegister.
type Authenticator interface {
	// Validate reports whether token is a member of the configured set. An empty configured set
	// always yields false.
	Validate(token string) bool
}
