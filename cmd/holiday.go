package cmd

import (
	"context"
	"fmt"
	"golang-scheduled-task/internal/model"
	"golang-scheduled-task/internal/repository"
	"golang-scheduled-task/internal/service"
	"golang-scheduled-task/pkg/utils"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	holidayFrom string
	holidayTo   string
	syncYear    int
)

var holidayCmd = &cobra.Command{
	Use:   "holiday",
	Short: "Manage the holiday calendar stored in the database",
}

var holidayAddCmd = &cobra.Command{
	Use:   "add <YYYY-MM-DD> <name>",
	Short: "Add or rename a holiday",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := utils.ParseDate(args[0])
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", args[0], err)
		}
		holiday := &model.Holiday{Date: date, Name: strings.Join(args[1:], " ")}
		return withServices(func(ctx context.Context, _ *AppDependency, repo *repository.Repository, _ *service.Service) error {
			if err := repo.HolidayRepo.Upsert(ctx, holiday); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "holiday %s %q saved\n", date.Format(time.DateOnly), holiday.Name)
			return nil
		})
	},
}

var holidayListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored holidays between --from and --to (default: current year)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, _ *AppDependency, repo *repository.Repository, services *service.Service) error {
			today := utils.CalendarDate(utils.TimeNowIn(services.SchedulerService.Location()), services.SchedulerService.Location())
			from := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
			to := time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
			var err error
			if holidayFrom != "" {
				if from, err = utils.ParseDate(holidayFrom); err != nil {
					return fmt.Errorf("invalid --from: %w", err)
				}
			}
			if holidayTo != "" {
				if to, err = utils.ParseDate(holidayTo); err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
			}

			holidays, err := repo.HolidayRepo.ListBetween(ctx, from, to)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tWEEKDAY\tNAME")
			for _, h := range holidays {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Date.Format(time.DateOnly), h.Date.Weekday(), h.Name)
			}
			return tw.Flush()
		})
	},
}

var holidaySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy a year of public holidays from the holiday API into the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(func(ctx context.Context, appDep *AppDependency, repo *repository.Repository, services *service.Service) error {
			year := syncYear
			if year == 0 {
				year = utils.TimeNowIn(services.SchedulerService.Location()).Year()
			}

			api := repository.NewHolidayAPIRepository(appDep.cfg, appDep.cache, appDep.log)
			holidays, err := api.ListYear(ctx, year)
			if err != nil {
				return err
			}
			for i := range holidays {
				if err := repo.HolidayRepo.Upsert(ctx, &holidays[i]); err != nil {
					return fmt.Errorf("store %s: %w", holidays[i].Date.Format(time.DateOnly), err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d holidays synced for %d\n", len(holidays), year)
			return nil
		})
	},
}

func init() {
	holidayListCmd.Flags().StringVar(&holidayFrom, "from", "", "first date, YYYY-MM-DD")
	holidayListCmd.Flags().StringVar(&holidayTo, "to", "", "last date, YYYY-MM-DD")
	holidaySyncCmd.Flags().IntVar(&syncYear, "year", 0, "year to sync (default: current year)")

	holidayCmd.AddCommand(holidayAddCmd, holidayListCmd, holidaySyncCmd)
}
