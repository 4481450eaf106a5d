package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/pkg"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

			db, err := pkg.InitDatabase(cfg)
			if err != nil {
				return err
			}
			defer pkg.CloseDatabase(db)

			if err := postgres.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("Database schema is up to date")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-register exam transitions and re-queue missed conclusions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.services.Exam().ReconcilePending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rescheduled %d exams, queued %d conclusions\n", summary.Rescheduled, summary.Concluding)
			return nil
		},
	}
}

func concludeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conclude <exam-id>",
		Short: "Rank an ended exam synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examID, err := parseExamID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.services.Conclusion().Conclude(cmd.Context(), examID)
			if err != nil {
				return err
			}
			renderConclusion(cmd, summary)
			return nil
		},
	}
	cmd.Flags().Int("batch-size", 0, "Rank write batch size (default from CONCLUSION_BATCH_SIZE)")
	return cmd
}

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results <exam-id>",
		Short: "Print the ranked results of a concluded exam",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examID, err := parseExamID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.close()

			v := viperForCmd(cmd)
			if path := v.GetString("xlsx"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				defer f.Close()
				if err := a.services.Results().ExportXLSX(cmd.Context(), examID, f); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
				return nil
			}

			page, err := a.services.Results().List(cmd.Context(), examID, repositories.ResultFilters{
				Limit:  v.GetInt("limit"),
				Offset: v.GetInt("offset"),
			})
			if err != nil {
				return err
			}
			renderResults(cmd, page)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("limit", 50, "Maximum rows to print")
	f.Int("offset", 0, "Rows to skip")
	f.String("xlsx", "", "Write the full ranking to this spreadsheet instead of printing")
	return cmd
}

func simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <exam-id>",
		Short: "Fill an exam with synthetic attempts and conclude it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examID, err := parseExamID(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.close()

			v := viperForCmd(cmd)
			summary, err := a.services.Simulation().Run(cmd.Context(), examID, services.SimulationConfig{
				Users:    v.GetStringSlice("users"),
				Seed:     uint64(v.GetInt64("seed")),
				SkipRate: v.GetFloat64("skip-rate"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "simulated %d attempts with %d submissions\n", summary.Attempts, summary.Submissions)
			renderConclusion(cmd, summary.Conclusion)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSlice("users", nil, "Comma separated user ids to simulate")
	f.Int64("seed", 1, "Random seed")
	f.Float64("skip-rate", 0.1, "Probability of leaving a question unanswered")
	_ = cmd.MarkFlagRequired("users")
	return cmd
}

func parseExamID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid exam id %q", arg)
	}
	return uint(id), nil
}

func renderConclusion(cmd *cobra.Command, summary *services.ConclusionSummary) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Exam", "Attempted", "Highest", "Lowest", "Max", "Batches", "Concluded"})
	table.Append([]string{
		strconv.FormatUint(uint64(summary.ExamID), 10),
		strconv.Itoa(summary.AttemptedCount),
		strconv.Itoa(summary.HighestScore),
		strconv.Itoa(summary.LowestScore),
		strconv.Itoa(summary.MaxScore),
		strconv.Itoa(summary.Batches),
		summary.ConcludedOn.Format("2006-01-02 15:04:05"),
	})
	table.Render()

	if len(summary.SubjectsRanked) == 0 {
		return
	}
	subjects := make([]string, 0, len(summary.SubjectsRanked))
	for subject := range summary.SubjectsRanked {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	subjectTable := tablewriter.NewWriter(cmd.OutOrStdout())
	subjectTable.SetHeader([]string{"Subject", "Ranked"})
	for _, subject := range subjects {
		subjectTable.Append([]string{subject, strconv.Itoa(summary.SubjectsRanked[subject])})
	}
	subjectTable.Render()
}

func renderResults(cmd *cobra.Command, page *services.ResultPage) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Rank", "User", "Score", "Percentile", "Subjects"})
	for _, attempt := range page.Results {
		rank, percentile := "-", "-"
		if attempt.Rank != nil {
			rank = strconv.Itoa(*attempt.Rank)
		}
		if attempt.Percentile != nil {
			percentile = strconv.FormatFloat(*attempt.Percentile, 'f', 4, 64)
		}
		subjects := make([]string, 0, len(attempt.SubjectScores))
		for _, s := range attempt.SubjectScores {
			subjects = append(subjects, fmt.Sprintf("%s %d/%d", s.SubjectCode, s.TotalScore, s.MaxTotalScore))
		}
		table.Append([]string{
			rank,
			attempt.UserID,
			fmt.Sprintf("%d/%d", attempt.TotalScore, attempt.MaxTotalScore),
			percentile,
			strings.Join(subjects, ", "),
		})
	}
	table.SetFooter([]string{"", "", "", "Total", strconv.FormatInt(page.Total, 10)})
	table.Render()
}
