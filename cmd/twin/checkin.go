package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/digitaltwin/internal/store"
	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

var (
	checkinDate   string
	checkinMood   float64
	checkinStress float64
	checkinSleep  float64
	checkinEnergy float64
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record daily check-ins",
}

var checkinAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Add or replace a day's check-in",
	Long:  "Record mood, stress, sleep quality and energy on a 0-10 scale. A second check-in for the same date replaces the first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckinAdd,
}

func init() {
	f := checkinAddCmd.Flags()
	f.StringVar(&checkinDate, "date", "", "Check-in date YYYY-MM-DD (default: today, UTC)")
	f.Float64Var(&checkinMood, "mood", 0, "Mood, 0-10 (higher is better)")
	f.Float64Var(&checkinStress, "stress", 0, "Stress, 0-10 (higher is worse)")
	f.Float64Var(&checkinSleep, "sleep", 0, "Sleep quality, 0-10 (higher is better)")
	f.Float64Var(&checkinEnergy, "energy", 0, "Energy, 0-10 (higher is better)")
	for _, name := range []string{"mood", "stress", "sleep", "energy"} {
		checkinAddCmd.MarkFlagRequired(name)
	}

	checkinCmd.AddCommand(checkinAddCmd)
}

func runCheckinAdd(cmd *cobra.Command, args []string) error {
	userID := args[0]

	date := checkinDate
	if date == "" {
		date = time.Now().UTC().Format(types.DateLayout)
	}
	if verr := validation.ValidateDate("date", date, types.DateLayout); verr != nil {
		return verr
	}
	day, _ := time.Parse(types.DateLayout, date)

	entry := types.CalibrationEntry{
		Date:         day,
		Mood:         checkinMood,
		Stress:       checkinStress,
		SleepQuality: checkinSleep,
		Energy:       checkinEnergy,
	}
	if errs := validation.ValidateCalibration(0, entry); len(errs) > 0 {
		return errs[0]
	}

	db, _, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.RecordCalibration(context.Background(), userID, store.CalibrationRecord{
		Date:         date,
		Mood:         entry.Mood,
		Stress:       entry.Stress,
		SleepQuality: entry.SleepQuality,
		Energy:       entry.Energy,
	})
	if err != nil {
		return fmt.Errorf("record check-in: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded check-in for %s\n", rec.Date)
	return nil
}
