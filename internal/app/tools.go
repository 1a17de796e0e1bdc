package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rahul/herodotus/internal/observability"
	"github.com/rahul/herodotus/internal/tools"
	"github.com/rahul/herodotus/pkg/config"
)

// Tool names per tool component.
var toolGroups = map[string][]string{
	"code":  {"code"},
	"shell": {"shell"},
	"web":   {"search", "scraper", "render"},
	"file":  {"file"},
}

// defaultTools registers every tool the tool unit can be given. Search is
// skipped when its client cannot be built.
func defaultTools(workspace string, logger *observability.Logger) (*tools.Registry, *tools.RenderTool, error) {
	registry := tools.NewRegistry()

	fs, err := tools.NewFilesystemTool(workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("workspace: %w", err)
	}
	registry.Register(tools.NewCodeTool())
	registry.Register(tools.NewShellTool(fs.Root))

	if search, err := tools.NewSearchTool(5); err != nil {
		logger.Zap().Warn("search tool unavailable", zap.Error(err))
	} else {
		registry.Register(search)
	}
	registry.Register(tools.NewScraperTool())
	render := tools.NewRenderTool()
	registry.Register(render)
	registry.Register(fs)

	return registry, render, nil
}

// toolsFor returns the registered tools selected by components.
func (s *Service) toolsFor(c config.ToolComponents) *tools.Registry {
	enabled := map[string]bool{"code": c.Code, "shell": c.Shell, "web": c.Web, "file": c.File}
	out := tools.NewRegistry()
	for _, group := range []string{"code", "shell", "web", "file"} {
		if !enabled[group] {
			continue
		}
		for _, name := range toolGroups[group] {
			if t, ok := s.deps.Tools.Get(name); ok {
				out.Register(t)
			}
		}
	}
	return out
}
