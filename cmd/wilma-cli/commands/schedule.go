package commands

import (
	"fmt"
	"time"
	"wilma-backend/cmd/wilma-cli/utils"
	"wilma-backend/lib/timezone"

	scraper "wilma-backend/lib/scrapers/wilma"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(weekCmd)
}

func parseDateArg(args []string) time.Time {
	if len(args) == 0 {
		return timezone.Now()
	}
	date, err := time.ParseInLocation(timezone.PortalDate, args[0], timezone.Location)
	if err != nil {
		fatal("invalid date, expected dd.mm.yyyy", err)
	}
	return date
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [dd.mm.yyyy]",
	Short: "Shows the lessons of a single day, today by default.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		date := parseDateArg(args)
		service := createService()

		day, err := service.Schedule(cmd.Context(), date)
		if err != nil {
			fatal("failed to fetch schedule", err)
		}
		renderDay(day)
	},
}

var weekCmd = &cobra.Command{
	Use:   "week [dd.mm.yyyy]",
	Short: "Shows the lessons of a week, starting today by default.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		start := parseDateArg(args)
		service := createService()

		week, err := service.WeekSchedule(cmd.Context(), start)
		if err != nil {
			fatal("failed to fetch week schedule", err)
		}
		for _, day := range week {
			renderDay(day)
		}
	},
}

func renderDay(day scraper.DaySchedule) {
	fmt.Println(day.Date.Format("Monday " + timezone.PortalDate))
	if len(day.Lessons) == 0 {
		fmt.Println("  no lessons")
		return
	}

	t := utils.NewTable()
	t.AppendHeader(table.Row{"Time", "Subject", "Teacher", "Room", "Notes"})
	for _, lesson := range day.Lessons {
		t.AppendRow(table.Row{
			lesson.StartTime + "-" + lesson.EndTime,
			lesson.Subject,
			lesson.Teacher,
			lesson.Room,
			lesson.Notes,
		})
	}
	t.Render()
}
