package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// fileSource serves credentials from a YAML workspace file, loaded once at
// startup. Intended for local/dev environments with several workspaces where
// per-workspace env keys get unwieldy.
type fileSource struct {
	byWorkspace map[string]WorkspaceCredentials
}

type workspaceFile struct {
	Workspaces []WorkspaceCredentials `yaml:"workspaces"`
}

func NewFileSource(path string, log *zap.SugaredLogger) (Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workspaces file: %w", err)
	}
	var f workspaceFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("yaml parse %s: %w", path, err)
	}
	s := &fileSource{byWorkspace: map[string]WorkspaceCredentials{}}
	for _, w := range f.Workspaces {
		if w.Workspace == "" {
			continue
		}
		s.byWorkspace[strings.ToLower(w.Workspace)] = w
	}
	log.Infow("workspaces file loaded", "path", path, "workspaces", len(s.byWorkspace))
	return s, nil
}

func (s *fileSource) Name() string { return "file" }

func (s *fileSource) Resolve(_ context.Context, workspace string) (WorkspaceCredentials, error) {
	creds, ok := s.byWorkspace[strings.ToLower(workspace)]
	if !ok {
		return WorkspaceCredentials{}, ErrNotFound
	}
	creds.Workspace = workspace
	return creds, nil
}
