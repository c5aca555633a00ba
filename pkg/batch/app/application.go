// Package app assembles the batch engine into a runnable Fx application
// and drives one batch run from the command line options.
package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/shipbatch/pkg/batch/component/renderer"
	"github.com/tigerroll/shipbatch/pkg/batch/component/source"
	"github.com/tigerroll/shipbatch/pkg/batch/core/config"
	"github.com/tigerroll/shipbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/shipbatch/pkg/batch/core/port"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/events"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/executor"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/mode"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/preview"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/recovery"
	"github.com/tigerroll/shipbatch/pkg/batch/engine/translate"
	"github.com/tigerroll/shipbatch/pkg/batch/infrastructure/carrier"
	gormrepo "github.com/tigerroll/shipbatch/pkg/batch/infrastructure/repository/gorm"
	"github.com/tigerroll/shipbatch/pkg/batch/infrastructure/writeback"
	batchlistener "github.com/tigerroll/shipbatch/pkg/batch/listener"
	"github.com/tigerroll/shipbatch/pkg/batch/support/util/logger"
)

// RunOptions carries one batch invocation's command line arguments.
type RunOptions struct {
	// SourcePath is the path of the shipment source file.
	SourcePath string
	// TemplatePath is the path of the JSON mapping template file.
	TemplatePath string
	// JobName names the job; defaults to the source file name.
	JobName string
	// Command is the original natural-language command, kept for auditing.
	Command string
	// Mode overrides the configured session mode ("confirm" or "auto").
	Mode string
	// RecoveryChoice is applied to every interrupted job found at startup
	// ("resume", "restart", "cancel" or "" to prompt).
	RecoveryChoice string
}

// RunApplication sets up and runs the batch application using uber-fx.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, opts RunOptions) {
	cfg, err := config.LoadConfig(envFilePath, embeddedConfig)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetLogLevel(cfg.Shipbatch.System.Logging.Level)

	app := fx.New(
		fx.Supply(
			embeddedConfig,
			opts,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),

		logger.Module,
		config.Module,
		gormrepo.Module,
		carrier.Module,
		renderer.Module,
		source.Module,
		writeback.Module,
		batchlistener.Module,
		events.Module,
		mode.Module,
		translate.Module,
		preview.Module,
		executor.Module,
		recovery.Module,

		fx.Invoke(startBatchRun),
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// RunnerDeps collects everything one batch run needs.
type RunnerDeps struct {
	fx.In
	Executor    *executor.BatchExecutor
	Recovery    *recovery.Manager
	Preview     *preview.Generator
	ModeManager *mode.SessionModeManager
	Resolver    port.SourceResolver
	Shipper     model.ShipperInfo
	Opts        RunOptions
	AppCtx      context.Context `name:"appCtx"`
}

// startBatchRun launches the batch run when the application starts and
// shuts the application down when it finishes.
func startBatchRun(lc fx.Lifecycle, shutdowner fx.Shutdowner, deps RunnerDeps) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := runBatch(deps.AppCtx, deps); err != nil {
					logger.Errorf("Batch run finished with error: %v", err)
				}
				if err := shutdowner.Shutdown(); err != nil {
					logger.Errorf("Failed to shut down application: %v", err)
				}
			}()
			return nil
		},
	})
}

// runBatch recovers interrupted jobs, then prepares, previews (in confirm
// mode) and executes the requested batch.
func runBatch(ctx context.Context, deps RunnerDeps) error {
	opts := deps.Opts

	if opts.Mode != "" {
		if err := deps.ModeManager.SetMode(model.ExecutionMode(opts.Mode)); err != nil {
			return err
		}
	}

	recovered, err := recoverInterrupted(ctx, deps)
	if err != nil {
		return err
	}

	mappingTemplate, err := os.ReadFile(opts.TemplatePath)
	if err != nil {
		return fmt.Errorf("failed to read mapping template %s: %w", opts.TemplatePath, err)
	}

	// A recovered job must be executed as itself: only its pending rows run,
	// so shipments from the interrupted run are never recreated. Preparing a
	// fresh job here instead would re-ship every row.
	if len(recovered) > 0 {
		for _, jobID := range recovered {
			if _, err := deps.Executor.Execute(ctx, jobID, string(mappingTemplate), deps.Shipper, opts.SourcePath); err != nil {
				return err
			}
		}
		return nil
	}

	jobName := opts.JobName
	if jobName == "" {
		jobName = opts.SourcePath
	}

	job, err := deps.Executor.Prepare(ctx, jobName, opts.Command, opts.SourcePath)
	if err != nil {
		return err
	}

	if job.Mode == model.ModeConfirm {
		approved, err := previewAndConfirm(ctx, deps, job, string(mappingTemplate))
		if err != nil {
			return err
		}
		if !approved {
			logger.Infof("Batch %s rejected at preview; nothing was shipped.", job.ID)
			return nil
		}
	}

	_, err = deps.Executor.Execute(ctx, job.ID, string(mappingTemplate), deps.Shipper, opts.SourcePath)
	return err
}

// recoverInterrupted applies the recovery choice to every interrupted job
// and returns the IDs of jobs left ready to execute, in the order they
// were recovered.
func recoverInterrupted(ctx context.Context, deps RunnerDeps) ([]string, error) {
	infos, err := deps.Recovery.CheckInterruptedJobs(ctx)
	if err != nil {
		return nil, err
	}

	var ready []string
	for _, info := range infos {
		choice := recovery.Choice(deps.Opts.RecoveryChoice)
		if choice == "" {
			choice = promptChoice(info)
		}
		outcome, err := deps.Recovery.Apply(ctx, info.JobID, choice)
		if err != nil {
			return nil, err
		}
		if outcome.DuplicateRisk {
			logger.Warnf("Job %s restart may duplicate already created shipments.", info.JobID)
		}
		logger.Infof("Recovery applied to job %s: %s (status now %s)", info.JobID, outcome.Choice, outcome.NewStatus)
		if outcome.ReadyToRun {
			ready = append(ready, outcome.JobID)
		}
	}
	return ready, nil
}

// promptChoice asks the operator to choose a recovery action for one job.
func promptChoice(info *model.InterruptedJobInfo) recovery.Choice {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(recovery.Prompt(info))
		line, err := reader.ReadString('\n')
		if err != nil {
			return recovery.ChoiceCancel
		}
		switch recovery.Choice(strings.TrimSpace(strings.ToLower(line))) {
		case recovery.ChoiceResume:
			return recovery.ChoiceResume
		case recovery.ChoiceRestart:
			return recovery.ChoiceRestart
		case recovery.ChoiceCancel:
			return recovery.ChoiceCancel
		}
		fmt.Println("Please answer resume, restart or cancel.")
	}
}

// previewAndConfirm renders the preview and asks for approval.
func previewAndConfirm(ctx context.Context, deps RunnerDeps, job *model.Job, mappingTemplate string) (bool, error) {
	src, err := deps.Resolver.Resolve(ctx, deps.Opts.SourcePath)
	if err != nil {
		return false, err
	}
	rows, err := src.Rows(ctx)
	if err != nil {
		return false, err
	}

	p, err := deps.Preview.Generate(ctx, job.Name, mappingTemplate, rows, deps.Shipper)
	if err != nil {
		return false, err
	}

	printPreview(p)

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Proceed with this batch? [y/N]: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}
	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "y" || answer == "yes", nil
}

// printPreview renders a preview to stdout.
func printPreview(p *model.BatchPreview) {
	fmt.Printf("Batch preview: %s (%d rows)\n", p.JobName, p.TotalRows)
	for _, row := range p.SampleRows {
		fmt.Printf("  %4d  %-23s %-40s %-12s %s\n",
			row.RowNumber, row.Recipient, row.Address, row.ServiceLevel, model.FormatMoneyCents(row.EstimatedCost))
		for _, warning := range row.Warnings {
			fmt.Printf("        warning: %s\n", warning)
		}
	}
	if p.Truncated {
		fmt.Printf("  ... and %d more row(s)\n", p.TotalRows-len(p.SampleRows))
	}
	if p.RowsWithWarnings > 0 {
		fmt.Printf("%d sampled row(s) carry carrier warnings.\n", p.RowsWithWarnings)
	}
	estimate := model.FormatMoneyCents(p.EstimatedCostCents)
	if p.CostExtrapolated {
		fmt.Printf("Estimated total cost: ~%s (extrapolated from first %d rows)\n", estimate, len(p.SampleRows))
	} else {
		fmt.Printf("Estimated total cost: %s\n", estimate)
	}
}
