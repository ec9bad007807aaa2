package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

func TestRepoName(t *testing.T) {
	name := types.RepoName("owner/project")
	gt.Value(t, name.Owner()).Equal("owner")
	gt.Value(t, name.Name()).Equal("project")
	gt.True(t, name.Valid())
	gt.Value(t, name.Feedstock()).Equal(types.RepoName("owner/project-feedstock"))

	gt.False(t, types.RepoName("project").Valid())
	gt.False(t, types.RepoName("owner/").Valid())
	gt.False(t, types.RepoName("a/b/c").Valid())
}

func TestCommitSHA_Short(t *testing.T) {
	gt.Value(t, types.CommitSHA("0123456789abcdef").Short()).Equal("0123456")
	gt.Value(t, types.CommitSHA("abc").Short()).Equal("abc")
}

func TestGitRevSource_Validate(t *testing.T) {
	gt.NoError(t, types.GitRevFromVersion.Validate())
	gt.NoError(t, types.GitRevFromCommit.Validate())
	gt.Error(t, types.GitRevSource("sha").Validate())
}
