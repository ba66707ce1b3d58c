package models

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverwritePolicy(t *testing.T) {
	for in, want := range map[string]OverwritePolicy{
		"":           Disallow,
		"disallow":   Disallow,
		"Prerelease": AllowPrereleaseOnly,
		"any":        AllowAny,
		" true ":     AllowAny,
	} {
		got, err := ParseOverwritePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOverwritePolicy("sometimes")
	assert.Error(t, err)
}

func TestOverwritePolicyAllows(t *testing.T) {
	assert.False(t, Disallow.Allows(true))
	assert.False(t, AllowPrereleaseOnly.Allows(false))
	assert.True(t, AllowPrereleaseOnly.Allows(true))
	assert.True(t, AllowAny.Allows(false))
}

func TestRetentionEnvelopeEnabled(t *testing.T) {
	assert.False(t, RetentionEnvelope{}.Enabled())
	n := 0
	assert.True(t, RetentionEnvelope{MaxPrerelease: &n}.Enabled())
}

func TestDescriptorIdentity(t *testing.T) {
	pkg := &PackageDescriptor{ID: "Contoso.Utils", Version: semver.MustParse("v1.2.0-Beta")}
	assert.Equal(t, "contoso.utils", pkg.Key())
	assert.Equal(t, "1.2.0-Beta", pkg.NormalizedVersion())
	assert.Equal(t, "Contoso.Utils 1.2.0-Beta", pkg.String())
	assert.Empty(t, (&PackageDescriptor{}).NormalizedVersion())
}

func TestIngestError(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&IngestError{Stage: StageMetadata, Package: "demo", Version: "1.0.0", Err: cause})

	assert.Equal(t, "[Metadata] demo 1.0.0: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "[Config] bad", (&IngestError{Stage: StageConfig, Err: errors.New("bad")}).Error())
}
