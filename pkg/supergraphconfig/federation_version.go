package supergraphconfig

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// FederationVersion selects the composition binary. It is either an exact version
// or the latest release of a major version.
type FederationVersion struct {
	major uint64
	exact *semver.Version
}

var (
	LatestFedOne = FederationVersion{major: 1}
	LatestFedTwo = FederationVersion{major: 2}
)

// ExactFederationVersion pins the composition binary to v.
func ExactFederationVersion(v *semver.Version) FederationVersion {
	return FederationVersion{major: federationMajor(v), exact: v}
}

// ParseFederationVersion accepts "1", "2", "v1", "v2" for the latest release of a major
// version and "=<semver>" for an exact version.
func ParseFederationVersion(raw string) (FederationVersion, error) {
	value := strings.TrimSpace(raw)
	switch value {
	case "1", "v1":
		return LatestFedOne, nil
	case "2", "v2":
		return LatestFedTwo, nil
	}

	if !strings.HasPrefix(value, "=") {
		return FederationVersion{}, fmt.Errorf("invalid federation version %q: use 1, 2 or =<exact version>", raw)
	}

	v, err := semver.StrictNewVersion(strings.TrimPrefix(strings.TrimPrefix(value, "="), "v"))
	if err != nil {
		return FederationVersion{}, fmt.Errorf("invalid federation version %q: %w", raw, err)
	}

	if v.Major() > 2 {
		return FederationVersion{}, fmt.Errorf("invalid federation version %q: unsupported major version %d", raw, v.Major())
	}

	return ExactFederationVersion(v), nil
}

// federation one shipped as 0.x releases of the composition binary
func federationMajor(v *semver.Version) uint64 {
	if v.Major() == 0 {
		return 1
	}
	return v.Major()
}

func (f FederationVersion) IsZero() bool {
	return f.major == 0
}

func (f FederationVersion) IsFedOne() bool {
	return f.major == 1
}

func (f FederationVersion) IsFedTwo() bool {
	return f.major == 2
}

func (f FederationVersion) IsLatest() bool {
	return f.exact == nil
}

func (f FederationVersion) Major() uint64 {
	return f.major
}

// Exact returns the pinned version, nil for a latest-of-major version.
func (f FederationVersion) Exact() *semver.Version {
	return f.exact
}

// Constraint returns the semver constraint an installed binary has to satisfy.
func (f FederationVersion) Constraint() *semver.Constraints {
	var raw string
	switch {
	case f.exact != nil:
		raw = "=" + f.exact.String()
	case f.major == 1:
		raw = ">=0.0.0, <2.0.0"
	default:
		raw = fmt.Sprintf(">=%d.0.0, <%d.0.0", f.major, f.major+1)
	}
	c, err := semver.NewConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (f FederationVersion) Equal(other FederationVersion) bool {
	if f.major != other.major {
		return false
	}
	if f.exact == nil || other.exact == nil {
		return f.exact == nil && other.exact == nil
	}
	return f.exact.Equal(other.exact)
}

// String renders the version the way ParseFederationVersion reads it.
func (f FederationVersion) String() string {
	if f.exact != nil {
		return "=" + f.exact.String()
	}
	return fmt.Sprintf("%d", f.major)
}

// PluginVersion is the version label used to look up the composition binary.
func (f FederationVersion) PluginVersion() string {
	if f.exact != nil {
		return "v" + f.exact.String()
	}
	return fmt.Sprintf("latest-%d", f.major)
}

func (f FederationVersion) MarshalYAML() (interface{}, error) {
	return f.String(), nil
}

func (f *FederationVersion) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseFederationVersion(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
