package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractServiceName_Valid(t *testing.T) {
	name, err := ExtractServiceName("/pkg.Foo/Bar")
	require.NoError(t, err)
	assert.Equal(t, "Foo", name)
}

func TestExtractServiceName_NestedPackage(t *testing.T) {
	name, err := ExtractServiceName("/amwaybot.v1.RecommendationService/Get")
	require.NoError(t, err)
	assert.Equal(t, "RecommendationService", name)
}

func TestExtractServiceName_MalformedCases(t *testing.T) {
	cases := []string{
		"",
		"/",
		"/Foo/Bar",       // first segment lacks "."
		"/pkg.Foo",       // only one segment
		"/pkg.Foo/",      // empty method
		"/pkg.Foo/Bar/Baz", // three segments
		"/.Foo/Bar",      // empty package before dot
	}
	for _, c := range cases {
		_, err := ExtractServiceName(c)
		assert.Error(t, err, "expected error for %q", c)
	}
}
