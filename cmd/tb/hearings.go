package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"townbox/internal/domain"
	"townbox/internal/engine"
	"townbox/internal/findings"
)

// parseHearingDate reads a YYYY-MM-DD date in the tenant's timezone.
func parseHearingDate(e engine.Engine, s string) (time.Time, error) {
	loc, err := e.Config.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func deadlineCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "deadline", Short: "Newspaper publication deadlines"}
	var date, reason string
	calc := &cobra.Command{
		Use:   "calc",
		Short: "Compute publication and submission deadlines for a hearing date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := parseHearingDate(e, date)
				if err != nil {
					return err
				}
				out, err := e.CalculateDeadlines(ctx, d, domain.NoticeReason(reason))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("%s hearing on %s (%s)\n", out.NoticeReason, out.HearingDate.Format(time.DateOnly), out.Rule.StatutoryCite)
				if !out.HasDeadline {
					fmt.Println("No newspaper publication required.")
					return nil
				}
				tw := newTable("#", "Publish by", "Submit by")
				for _, p := range out.RequiredPublications {
					tw.AppendRow(table.Row{p.Number, p.LatestPublicationDate.Format(time.DateOnly), p.SubmissionDeadline.Format(time.DateOnly)})
				}
				tw.Render()
				fmt.Printf("Risk: %s %s\n", out.RiskLevel, out.RiskMessage)
				return nil
			})
		},
	}
	calc.Flags().StringVar(&date, "date", "", "hearing date, YYYY-MM-DD")
	calc.Flags().StringVar(&reason, "reason", "", "notice reason, e.g. BOND_HEARING")
	_ = calc.MarkFlagRequired("date")
	_ = calc.MarkFlagRequired("reason")
	cmd.AddCommand(calc)
	return cmd
}

func hearingCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "hearing", Short: "Manage public hearings"}
	cmd.AddCommand(hearingScheduleCmd())
	cmd.AddCommand(hearingListCmd())
	cmd.AddCommand(hearingRefreshCmd())
	return cmd
}

func hearingScheduleCmd() *cobra.Command {
	var opts engine.HearingScheduleOptions
	var date, reason string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a hearing and record its deadlines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := parseHearingDate(e, date)
				if err != nil {
					return err
				}
				opts.HearingDate = d
				opts.NoticeReason = domain.NoticeReason(reason)
				h, err := e.ScheduleHearing(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "hearing id (generated when empty)")
	cmd.Flags().StringVar(&opts.MeetingID, "meeting", "", "meeting the hearing is held at")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&date, "date", "", "hearing date, YYYY-MM-DD")
	cmd.Flags().StringVar(&reason, "reason", "", "notice reason")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func printHearings(items []domain.Hearing) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable("ID", "Title", "Date", "Reason", "Submit by", "Risk")
	for _, h := range items {
		submit := "-"
		if h.Deadlines.HasDeadline {
			submit = h.Deadlines.EarliestSubmissionDeadline.Format(time.DateOnly)
		}
		tw.AppendRow(table.Row{h.ID, h.Title, h.HearingDate.Format(time.DateOnly), h.NoticeReason, submit, h.RiskLevel})
	}
	tw.Render()
	return nil
}

func hearingListCmd() *cobra.Command {
	var risk string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hearings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListHearings(ctx, domain.RiskLevel(risk))
				if err != nil {
					return err
				}
				return printHearings(items)
			})
		},
	}
	cmd.Flags().StringVar(&risk, "risk", "", "LOW, MEDIUM, HIGH or IMPOSSIBLE")
	return cmd
}

func hearingRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-assess the risk of every open hearing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				changed, err := e.RefreshRisk(ctx)
				if err != nil {
					return err
				}
				if len(changed) == 0 && !viper.GetBool("json") {
					fmt.Println("No risk changes.")
					return nil
				}
				return printHearings(changed)
			})
		},
	}
}

func findingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "findings",
		Short: "Findings of fact for zoning cases",
	}

	var caseID, caseType string
	create := &cobra.Command{
		Use:   "create",
		Short: "Open findings for a case from its statutory template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.CreateFindings(ctx, caseID, domain.CaseType(caseType))
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	create.Flags().StringVar(&caseID, "case", "", "case id")
	create.Flags().StringVar(&caseType, "type", "", "DEVELOPMENT_STANDARDS_VARIANCE, USE_VARIANCE or SPECIAL_EXCEPTION")
	_ = create.MarkFlagRequired("case")
	_ = create.MarkFlagRequired("type")

	var board, rationale string
	decide := &cobra.Command{
		Use:   "decide <findings-id> <criterion-id>",
		Short: "Record the board's determination on a criterion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := findings.CriterionUpdate{}
			if board != "" {
				d := domain.Determination(board)
				upd.BoardDetermination = &d
			}
			if cmd.Flags().Changed("rationale") {
				upd.Rationale = &rationale
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.UpdateCriterion(ctx, args[0], args[1], upd)
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	decide.Flags().StringVar(&board, "board", "", "MET, NOT_MET or UNABLE_TO_DETERMINE")
	decide.Flags().StringVar(&rationale, "rationale", "", "rationale")

	evaluate := &cobra.Command{
		Use:   "evaluate <findings-id>",
		Short: "Show whether the findings support approval or denial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.EvaluateFindings(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}

	var decision string
	adopt := &cobra.Command{
		Use:   "adopt <findings-id>",
		Short: "Adopt and lock the findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f, err := e.AdoptFindings(ctx, args[0], domain.Decision(decision))
				if err != nil {
					return err
				}
				return printJSONOrTable(f)
			})
		},
	}
	adopt.Flags().StringVar(&decision, "decision", "", "APPROVE or DENY")
	_ = adopt.MarkFlagRequired("decision")

	cmd.AddCommand(create, decide, evaluate, adopt)
	return cmd
}
