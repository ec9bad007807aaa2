package recipe

import (
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// DefaultVersionFile is the project file holding the version string
const DefaultVersionFile = "version"

// VersionFile is the plain-text file holding a project's version
type VersionFile struct {
	rel string
}

var _ interfaces.VersionStore = (*VersionFile)(nil)

// NewVersionFile creates a VersionFile for rel, relative to the project root
func NewVersionFile(rel string) *VersionFile {
	if rel == "" {
		rel = DefaultVersionFile
	}
	return &VersionFile{rel: rel}
}

// Read parses the version file of the project at projectDir
func (x *VersionFile) Read(projectDir string) (model.SemanticVersion, error) {
	path := filepath.Join(projectDir, x.rel)
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.SemanticVersion{}, goerr.Wrap(err, "failed to read version file",
			goerr.V("path", path),
			goerr.T(types.ErrTagPrecondition),
		)
	}

	v, err := model.ParseVersion(string(raw))
	if err != nil {
		return model.SemanticVersion{}, goerr.Wrap(err, "could not parse project version", goerr.V("path", path))
	}
	return v, nil
}

// Write replaces the version file content with v and a newline
func (x *VersionFile) Write(projectDir string, v model.SemanticVersion) error {
	return writeFileAtomic(filepath.Join(projectDir, x.rel), []byte(v.String()+"\n"))
}
