package usecase_test

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/herder/pkg/domain/interfaces"
	"github.com/m-mizutani/herder/pkg/domain/model"
	"github.com/m-mizutani/herder/pkg/domain/types"
)

// mockGitHubClient is a mock implementation of GitHubClient
type mockGitHubClient struct {
	getRepositoryFunc func(ctx context.Context, name types.RepoName) (*model.RepositoryHandle, error)
	getCommitFunc     func(ctx context.Context, name types.RepoName, sha types.CommitSHA) (*model.Commit, error)
	getBranchFunc     func(ctx context.Context, name types.RepoName, branch types.BranchName) (*model.Branch, error)

	mu                sync.Mutex
	repositoryLookups []types.RepoName
}

var _ interfaces.GitHubClient = (*mockGitHubClient)(nil)

func (m *mockGitHubClient) GetRepository(ctx context.Context, name types.RepoName) (*model.RepositoryHandle, error) {
	m.mu.Lock()
	m.repositoryLookups = append(m.repositoryLookups, name)
	m.mu.Unlock()

	if m.getRepositoryFunc != nil {
		return m.getRepositoryFunc(ctx, name)
	}
	return &model.RepositoryHandle{
		Name:     name,
		CloneURL: "https://github.com/" + name.String() + ".git",
	}, nil
}

func (m *mockGitHubClient) GetCommit(ctx context.Context, name types.RepoName, sha types.CommitSHA) (*model.Commit, error) {
	if m.getCommitFunc != nil {
		return m.getCommitFunc(ctx, name, sha)
	}
	return &model.Commit{SHA: sha, Message: "no tag here"}, nil
}

func (m *mockGitHubClient) GetBranch(ctx context.Context, name types.RepoName, branch types.BranchName) (*model.Branch, error) {
	if m.getBranchFunc != nil {
		return m.getBranchFunc(ctx, name, branch)
	}
	return &model.Branch{Name: branch}, nil
}

type commitCall struct {
	Path     string
	Message  string
	Identity model.Identity
}

type pushCall struct {
	Path   string
	Remote string
	Opts   model.PushOptions
}

// mockGitClient writes the files registered for a remote on Clone and records
// every mutation
type mockGitClient struct {
	// remotes maps clone URL to relative path and content
	remotes map[string]map[string]string

	cloneFunc func(ctx context.Context, remoteURL, localPath string, branch types.BranchName) error
	pushFunc  func(ctx context.Context, localPath, remoteURL string, opts model.PushOptions) error
	noChanges bool

	mu      sync.Mutex
	clones  []string
	staged  []string
	commits []commitCall
	pushes  []pushCall
}

var _ interfaces.GitClient = (*mockGitClient)(nil)

func (m *mockGitClient) Clone(ctx context.Context, remoteURL, localPath string, branch types.BranchName) error {
	m.mu.Lock()
	m.clones = append(m.clones, remoteURL)
	m.mu.Unlock()

	if m.cloneFunc != nil {
		return m.cloneFunc(ctx, remoteURL, localPath, branch)
	}

	if err := os.MkdirAll(localPath, 0755); err != nil {
		return err
	}
	for rel, content := range m.remotes[withoutCredentials(remoteURL)] {
		path := filepath.Join(localPath, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func withoutCredentials(remoteURL string) string {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return remoteURL
	}
	u.User = nil
	return u.String()
}

func (m *mockGitClient) Checkout(ctx context.Context, localPath string, branch types.BranchName) error {
	return nil
}

func (m *mockGitClient) StageAll(ctx context.Context, localPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staged = append(m.staged, localPath)
	return nil
}

func (m *mockGitClient) HasStagedChanges(ctx context.Context, localPath string) (bool, error) {
	return !m.noChanges, nil
}

func (m *mockGitClient) Commit(ctx context.Context, localPath, message string, identity model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits = append(m.commits, commitCall{Path: localPath, Message: message, Identity: identity})
	return nil
}

func (m *mockGitClient) Push(ctx context.Context, localPath, remoteURL string, opts model.PushOptions) error {
	m.mu.Lock()
	m.pushes = append(m.pushes, pushCall{Path: localPath, Remote: remoteURL, Opts: opts})
	m.mu.Unlock()

	if m.pushFunc != nil {
		return m.pushFunc(ctx, localPath, remoteURL, opts)
	}
	return nil
}

// pushedRemotes returns the remotes of "all branches" pushes in order
func (m *mockGitClient) pushedRemotes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var remotes []string
	for _, p := range m.pushes {
		if p.Opts.All {
			remotes = append(remotes, p.Remote)
		}
	}
	return remotes
}

type mockRerenderer struct {
	rerenderFunc func(ctx context.Context, feedstockDir string) (*interfaces.RerenderResult, error)
	calls        int
}

func (m *mockRerenderer) Rerender(ctx context.Context, feedstockDir string) (*interfaces.RerenderResult, error) {
	m.calls++
	if m.rerenderFunc != nil {
		return m.rerenderFunc(ctx, feedstockDir)
	}
	return &interfaces.RerenderResult{}, nil
}

type mockBumper struct {
	bumpFunc func(ctx context.Context, projectDir string, kind types.BumpKind) error
	kinds    []types.BumpKind
}

func (m *mockBumper) Bump(ctx context.Context, projectDir string, kind types.BumpKind) error {
	m.kinds = append(m.kinds, kind)
	if m.bumpFunc != nil {
		return m.bumpFunc(ctx, projectDir, kind)
	}
	return nil
}

type mockConfirmer struct {
	answer    bool
	questions []string
}

func (m *mockConfirmer) Confirm(ctx context.Context, question string) (bool, error) {
	m.questions = append(m.questions, question)
	return m.answer, nil
}

type mockNotifier struct {
	notifyFunc func(ctx context.Context, report *model.RunReport) error
	reports    []*model.RunReport
}

func (m *mockNotifier) Notify(ctx context.Context, report *model.RunReport) error {
	m.reports = append(m.reports, report)
	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, report)
	}
	return nil
}

type mockReportStore struct {
	putFunc func(ctx context.Context, report *model.RunReport) error
	reports []*model.RunReport
}

func (m *mockReportStore) Put(ctx context.Context, report *model.RunReport) error {
	m.reports = append(m.reports, report)
	if m.putFunc != nil {
		return m.putFunc(ctx, report)
	}
	return nil
}

// mockReleaseUseCase is a mock implementation of ReleaseUseCase
type mockReleaseUseCase struct {
	runFunc func(ctx context.Context, event *model.Event) (*model.RunReport, error)

	mu     sync.Mutex
	events []model.Event
}

func (m *mockReleaseUseCase) Run(ctx context.Context, event *model.Event) (*model.RunReport, error) {
	m.mu.Lock()
	m.events = append(m.events, *event)
	m.mu.Unlock()

	if m.runFunc != nil {
		return m.runFunc(ctx, event)
	}
	return &model.RunReport{}, nil
}
