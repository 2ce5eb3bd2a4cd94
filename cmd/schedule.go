package cmd

import (
	"context"
	"errors"
	"fmt"
	"golang-scheduled-task/internal/dto"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/schedule"
	"golang-scheduled-task/internal/service"
	"golang-scheduled-task/pkg/utils"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	asOfFlag    string
	forceFlag   bool
	groupFlag   uint
	activeFlag  bool
	historySize int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run and inspect scheduled tasks",
}

var runAllCmd = &cobra.Command{
	Use:   "run-all",
	Short: "Materialize every scheduled task due at --as-of (default now)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, _ *AppDependency, _ *repository.Repository, services *service.Service) error {
			asOf, err := resolveAsOf(services.SchedulerService.Location())
			if err != nil {
				return err
			}
			report, err := services.SchedulerService.RunBatch(ctx, asOf)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		})
	},
}

var runOneCmd = &cobra.Command{
	Use:   "run-one <scheduled-task-id>",
	Short: "Run a single scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withServices(func(ctx context.Context, _ *AppDependency, _ *repository.Repository, services *service.Service) error {
			asOf, err := resolveAsOf(services.SchedulerService.Location())
			if err != nil {
				return err
			}
			outcome, err := services.SchedulerService.RunOne(ctx, id, asOf, forceFlag)
			if err != nil {
				return err
			}
			printOutcomes(cmd.OutOrStdout(), []dto.ExecutionOutcome{*outcome})
			if outcome.Kind == dto.OutcomeFailed {
				return fmt.Errorf("scheduled task %d failed: %s", id, outcome.Error)
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled task templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var param model.ListScheduledTaskParam
		if cmd.Flags().Changed("group") {
			param.GroupID = &groupFlag
		}
		if cmd.Flags().Changed("active") {
			param.IsActive = &activeFlag
		}
		return withServices(func(ctx context.Context, _ *AppDependency, _ *repository.Repository, services *service.Service) error {
			tasks, err := services.SchedulerService.List(ctx, param)
			if err != nil {
				return err
			}
			printTemplates(cmd.OutOrStdout(), tasks)
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <scheduled-task-id>",
	Short: "Show the execution log of a scheduled task, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withServices(func(ctx context.Context, _ *AppDependency, _ *repository.Repository, services *service.Service) error {
			executions, err := services.SchedulerService.History(ctx, id, historySize)
			if err != nil {
				return err
			}
			printExecutions(cmd.OutOrStdout(), executions)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate and store scheduled tasks listed under scheduled_tasks in a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := readTemplates(args[0])
		if err != nil {
			return err
		}
		return withServices(func(ctx context.Context, _ *AppDependency, _ *repository.Repository, services *service.Service) error {
			var failed int
			for i, input := range inputs {
				task, err := services.ScheduledTaskService.Create(ctx, input)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "#%d %q: %v\n", i, input.Title, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d %q\n", task.ID, task.Title)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scheduled tasks rejected", failed, len(inputs))
			}
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{runAllCmd, runOneCmd} {
		c.Flags().StringVar(&asOfFlag, "as-of", "", "run instant, RFC3339 or YYYY-MM-DDTHH:MM in the scheduler timezone")
	}
	runOneCmd.Flags().BoolVar(&forceFlag, "force", false, "ignore rules, holidays and the due window (never the once-per-date guarantee)")
	listCmd.Flags().UintVar(&groupFlag, "group", 0, "only templates of this group")
	listCmd.Flags().BoolVar(&activeFlag, "active", true, "only active (true) or inactive (false) templates")
	historyCmd.Flags().IntVar(&historySize, "limit", 0, "number of rows (default scheduler.history_limit)")

	scheduleCmd.AddCommand(runAllCmd, runOneCmd, listCmd, historyCmd, importCmd)
}

// withServices wires the application for a one-shot command and cancels the
// context on SIGINT or SIGTERM.
func withServices(fn func(ctx context.Context, appDep *AppDependency, repo *repository.Repository, services *service.Service) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		return fmt.Errorf("failed to create app dependency: %w", err)
	}
	defer appDep.Close()

	repo, services, err := appDep.Services()
	if err != nil {
		return err
	}
	return fn(ctx, appDep, repo, services)
}

func resolveAsOf(loc *time.Location) (time.Time, error) {
	if asOfFlag == "" {
		return utils.TimeNowIn(loc), nil
	}
	return utils.ParseAsOf(asOfFlag, loc)
}

func parseID(raw string) (uint, error) {
	var id uint
	if _, err := fmt.Sscan(raw, &id); err != nil || id == 0 {
		return 0, fmt.Errorf("invalid scheduled task id %q", raw)
	}
	return id, nil
}

func readTemplates(path string) ([]dto.ScheduledTaskInput, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var inputs []dto.ScheduledTaskInput
	if err := v.UnmarshalKey("scheduled_tasks", &inputs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(inputs) == 0 {
		return nil, errors.New("no scheduled_tasks found")
	}
	return inputs, nil
}

func printReport(w io.Writer, report *dto.BatchReport) {
	fmt.Fprintf(w, "run %s date %s: %d templates, %d succeeded, %d failed, %d skipped, %d not due, %d already executed\n",
		report.RunID, report.Date, report.Templates,
		report.Succeeded, report.Failed, report.Skipped, report.NotDue, report.AlreadyExecuted)
	printOutcomes(w, report.Outcomes)
}

func printOutcomes(w io.Writer, outcomes []dto.ExecutionOutcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEMPLATE\tDATE\tOUTCOME\tNOTE\tTASK\tDELETED\tERROR")
	for _, o := range outcomes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ScheduledTaskID, o.Date, o.Kind, dash(o.Note), idOrDash(o.CreatedTaskID), idOrDash(o.DeletedTaskID), dash(o.Error))
	}
	_ = tw.Flush()
}

func printTemplates(w io.Writer, tasks []model.ScheduledTask) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGROUP\tTITLE\tACTIVE\tVALID\tSCHEDULE\tFLAGS")
	for _, t := range tasks {
		end := "open"
		if t.EndDate.Valid {
			end = t.EndDate.Time.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%t\t%s..%s\t%s\t%s\n",
			t.ID, t.GroupID, t.Title, t.IsActive, t.StartDate.Format(time.DateOnly), end, describeRules(&t), templateFlags(&t))
	}
	_ = tw.Flush()
}

func printExecutions(w io.Writer, executions []model.ScheduledTaskExecution) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tEXECUTED_AT\tSTATUS\tNOTE\tTASK\tDELETED\tTRIGGER\tERROR")
	for _, e := range executions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			e.ExecutionDate.Format(time.DateOnly),
			e.ExecutedAt.UTC().Format(time.RFC3339),
			e.Status,
			dash(e.Note.String),
			nullIDOrDash(e.CreatedTaskID.Int64, e.CreatedTaskID.Valid),
			nullIDOrDash(e.DeletedTaskID.Int64, e.DeletedTaskID.Valid),
			e.Trigger,
			dash(e.ErrorMessage.String),
		)
	}
	_ = tw.Flush()
}

func describeRules(t *model.ScheduledTask) string {
	if t.RulesErr != nil {
		return "invalid: " + t.RulesErr.Error()
	}
	parts := make([]string, 0, len(t.Rules))
	for _, r := range t.Rules {
		parts = append(parts, schedule.Describe(r))
	}
	return strings.Join(parts, "; ")
}

func templateFlags(t *model.ScheduledTask) string {
	var flags []string
	if t.SkipHolidays {
		flags = append(flags, "skip_holidays")
	}
	if t.ExecuteOnNextBusinessDay {
		flags = append(flags, "makeup")
	}
	if t.DeleteIncompleteOnCreate {
		flags = append(flags, "replace_incomplete")
	}
	if t.IsUnassigned() {
		flags = append(flags, "pool")
	}
	return dash(strings.Join(flags, ","))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func idOrDash(id uint) string {
	if id == 0 {
		return "-"
	}
	return fmt.Sprint(id)
}

func nullIDOrDash(id int64, valid bool) string {
	if !valid {
		return "-"
	}
	return fmt.Sprint(id)
}
