package recipe_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
	"github.com/m-mizutani/herder/pkg/infra/recipe"
)

func TestVersionFile(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, recipe.DefaultVersionFile), []byte("1.2.3.dev4\n"), 0644))

	vf := recipe.NewVersionFile("")
	v, err := vf.Read(dir)
	gt.NoError(t, err)
	gt.Value(t, v.String()).Equal("1.2.3.dev4")

	next := model.SemanticVersion{Major: 1, Minor: 2, Patch: 3, PrereleaseKind: "dev", PrereleaseNumber: 5}
	gt.NoError(t, vf.Write(dir, next))

	raw, err := os.ReadFile(filepath.Join(dir, recipe.DefaultVersionFile))
	gt.NoError(t, err)
	gt.Value(t, string(raw)).Equal("1.2.3.dev5\n")
}

func TestVersionFile_CustomPath(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0755))
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "VERSION"), []byte("0.1.0"), 0644))

	v, err := recipe.NewVersionFile("pkg/VERSION").Read(dir)
	gt.NoError(t, err)
	gt.Value(t, v.String()).Equal("0.1.0")
}

func TestVersionFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	gt.NoError(t, os.WriteFile(filepath.Join(dir, "version"), []byte("garbage"), 0644))

	_, err := recipe.NewVersionFile("version").Read(dir)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagInvalidVersion))
}

func TestVersionFile_Missing(t *testing.T) {
	_, err := recipe.NewVersionFile("version").Read(t.TempDir())
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagPrecondition))
}
