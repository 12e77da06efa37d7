// Package builtin wires the stock action catalogue into a registry.
package builtin

import (
	"net/http"

	"otto/internal/domain/ports"
	"otto/internal/infra/procexec"
	"otto/internal/infra/sandbox"
	"otto/internal/infra/tools/builtin/browser"
	"otto/internal/infra/tools/builtin/control"
	"otto/internal/infra/tools/builtin/database"
	"otto/internal/infra/tools/builtin/dockerops"
	"otto/internal/infra/tools/builtin/execution"
	"otto/internal/infra/tools/builtin/fileops"
	"otto/internal/infra/tools/builtin/gitops"
	"otto/internal/infra/tools/builtin/quality"
	"otto/internal/infra/tools/builtin/research"
	"otto/internal/infra/tools/builtin/search"
	"otto/internal/infra/tools/builtin/secscan"
	"otto/internal/infra/tools/builtin/web"
	"otto/internal/shared/config"
	"otto/internal/shared/logging"
)

// Deps carries everything the stock tools need. All fields except Oracle and
// Browser are required; tools depending on an absent optional are skipped.
type Deps struct {
	Policy     *sandbox.Policy
	Runner     *procexec.Runner
	HTTPClient *http.Client
	Oracle     ports.OracleClient
	Browser    *browser.Manager
	Logger     logging.Logger
	Tools      config.ToolsConfig
}

// RegisterAll registers the full built-in catalogue.
func RegisterAll(reg ports.ToolRegistry, deps Deps) error {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	deps.Logger = logging.OrNop(deps.Logger)

	tools := []ports.ToolExecutor{
		// filesystem
		fileops.NewReadFile(deps.Policy),
		fileops.NewWriteFile(deps.Policy),
		fileops.NewEditFile(deps.Policy),
		fileops.NewListFiles(deps.Policy),
		fileops.NewFindFiles(deps.Policy),
		search.NewSearchCode(deps.Policy, deps.Runner),

		// process execution
		execution.NewExecuteShell(deps.Policy, deps.Runner),
		execution.NewExecuteCode(deps.Policy, deps.Runner),

		// network
		web.NewWebSearch(deps.HTTPClient, deps.Tools.SearchBaseURL),
		web.NewFetchWebpage(deps.Policy, deps.HTTPClient, web.FetchConfig{
			CacheTTL:     deps.Tools.FetchCacheTTL,
			CacheEntries: deps.Tools.FetchCacheEntries,
		}),
		web.NewHTTPRequest(deps.Policy, deps.HTTPClient),
		research.NewResearchTopic(deps.Policy, deps.HTTPClient, deps.Tools.SearchBaseURL, deps.Logger),

		// version control
		gitops.NewGitStatus(deps.Policy, deps.Runner),
		gitops.NewGitDiff(deps.Policy, deps.Runner),
		gitops.NewGitLog(deps.Policy, deps.Runner),
		gitops.NewGitBranch(deps.Policy, deps.Runner),
		gitops.NewGitCommit(deps.Policy, deps.Runner),
		gitops.NewGitPush(deps.Policy, deps.Runner),
		gitops.NewCreatePullRequest(deps.Policy, deps.Runner),

		// containers
		dockerops.NewManageContainer(deps.Policy, deps.Runner),

		// code quality
		quality.NewRunLint(deps.Policy, deps.Runner),
		quality.NewRunFormatter(deps.Policy, deps.Runner),
		quality.NewRunTests(deps.Policy, deps.Runner),

		// security
		secscan.NewScanDependencies(deps.Policy, deps.Runner),
		secscan.NewScanSecrets(deps.Policy),

		// database
		database.NewDatabaseQuery(deps.Policy, deps.Tools.DatabaseDSN),

		// loop control
		control.NewTaskComplete(),
		control.NewRequestHelp(),
	}

	if deps.Oracle != nil {
		tools = append(tools,
			gitops.NewGenerateCommitMessage(deps.Policy, deps.Runner, deps.Oracle),
			dockerops.NewGenerateDockerfile(deps.Policy, deps.Oracle),
		)
	}
	if deps.Browser != nil {
		tools = append(tools, browser.NewBrowserInteract(deps.Browser, deps.Policy))
	}

	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}
