package service

import (
	"fmt"
	"strings"

	"botgateway/domain"
)

// ExtractServiceName parses a gRPC canonical path "/<package>.<Service>/<Method>" into the bare
// service name (the token after the final "." and before the second "/"), per SPEC_FULL.md §5.4.
// Grounded on original_source's extract_service_name: split on "/", then the first segment on ".".
// Returns domain.ErrMalformedPath if the path does not have exactly two non-empty "/"-separated
// segments or the first segment lacks a ".".
func ExtractServiceName(fullMethod string) (string, error) {
	trimmed := strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrMalformedPath, fullMethod)
	}
	idx := strings.LastIndex(parts[0], ".")
	if idx <= 0 || idx == len(parts[0])-1 {
		return "", fmt.Errorf("%w: %q", domain.ErrMalformedPath, fullMethod)
	}
	return parts[0][idx+1:], nil
}
