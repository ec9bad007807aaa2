package model

import (
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// MetadataKey is a key of the recipe metadata table
type MetadataKey string

const (
	KeyVersion MetadataKey = "version"
	KeyBuild   MetadataKey = "build"
	KeyGitRev  MetadataKey = "git_rev"
)

// MetadataKeys is the fixed key set, in the order substitutions are applied
var MetadataKeys = []MetadataKey{KeyVersion, KeyBuild, KeyGitRev}

// FeedstockMetadata holds the values of the version/build/git_rev lines of a recipe
type FeedstockMetadata map[MetadataKey]string

// Substitution is one (key, new value) pair applied to a recipe
type Substitution struct {
	Key   MetadataKey
	Value string
}

func (x FeedstockMetadata) Version() string { return x[KeyVersion] }
func (x FeedstockMetadata) Build() string   { return x[KeyBuild] }
func (x FeedstockMetadata) GitRev() string  { return x[KeyGitRev] }

// Next computes the metadata for newVersion. The build number is bumped when
// the version did not move and reset to 0 otherwise. gitRev overrides the
// git_rev value when non-empty, else the version is used.
func (x FeedstockMetadata) Next(newVersion, gitRev string) (FeedstockMetadata, error) {
	build := 0
	if x.Version() == newVersion {
		prev, err := strconv.Atoi(x.Build())
		if err != nil {
			return nil, goerr.Wrap(err, "build number is not an integer",
				goerr.V("build", x.Build()),
				goerr.T(types.ErrTagPrecondition),
			)
		}
		build = prev + 1
	}

	if gitRev == "" {
		gitRev = newVersion
	}

	return FeedstockMetadata{
		KeyVersion: newVersion,
		KeyBuild:   strconv.Itoa(build),
		KeyGitRev:  gitRev,
	}, nil
}

// Substitutions returns the ordered substitution list for the fixed key set.
// Keys without a value are left out.
func (x FeedstockMetadata) Substitutions() []Substitution {
	var subs []Substitution
	for _, key := range MetadataKeys {
		if v, ok := x[key]; ok {
			subs = append(subs, Substitution{Key: key, Value: v})
		}
	}
	return subs
}
