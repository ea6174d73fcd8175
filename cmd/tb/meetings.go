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
)

func bodyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "body", Short: "Manage governing bodies"}
	var b domain.GoverningBody
	var quorumType string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a governing body",
		RunE: func(cmd *cobra.Command, args []string) error {
			b.QuorumType = domain.QuorumType(quorumType)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.CreateBody(ctx, b)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	create.Flags().StringVar(&b.ID, "id", "", "body id (generated when empty)")
	create.Flags().StringVar(&b.Name, "name", "", "body name")
	create.Flags().IntVar(&b.TotalSeats, "seats", 0, "total seats")
	create.Flags().StringVar(&quorumType, "quorum-type", "MAJORITY", "MAJORITY, TWO_THIRDS or SPECIFIC")
	create.Flags().IntVar(&b.QuorumNumber, "quorum-number", 0, "members required when quorum-type is SPECIFIC")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("seats")
	cmd.AddCommand(create)
	return cmd
}

func meetingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Manage meetings",
		Long:  "Meetings move DRAFT -> SCHEDULED -> NOTICED -> IN_PROGRESS -> ADJOURNED. Posting notice is checked against the tenant's lead time.",
	}
	cmd.AddCommand(meetingCreateCmd())
	cmd.AddCommand(meetingListCmd())
	cmd.AddCommand(meetingShowCmd())
	cmd.AddCommand(meetingTransitionCmd())
	cmd.AddCommand(meetingAttendCmd())
	cmd.AddCommand(meetingQuorumCmd())
	return cmd
}

func meetingCreateCmd() *cobra.Command {
	var opts engine.MeetingCreateOptions
	var start string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a meeting in DRAFT",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("--start must be RFC 3339: %w", err)
			}
			opts.ScheduledStart = t
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateMeeting(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "meeting id (generated when empty)")
	cmd.Flags().StringVar(&opts.BodyID, "body", "", "governing body id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location")
	cmd.Flags().StringVar(&start, "start", "", "scheduled start, RFC 3339")
	cmd.Flags().BoolVar(&opts.IsEmergency, "emergency", false, "emergency meeting (exempt from the notice lead time)")
	_ = cmd.MarkFlagRequired("body")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func meetingListCmd() *cobra.Command {
	var bodyID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListMeetings(ctx, bodyID, domain.MeetingStatus(status))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Title", "Status", "Start", "Emergency")
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.Title, m.Status, m.ScheduledStart.Format(time.RFC3339), m.IsEmergency})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bodyID, "body", "", "governing body filter")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func meetingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.GetMeeting(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func meetingTransitionCmd() *cobra.Command {
	var to, posted string
	cmd := &cobra.Command{
		Use:   "transition <id>",
		Short: "Move a meeting to another status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.MeetingTransitionOptions{ID: args[0], To: domain.MeetingStatus(to)}
			if posted != "" {
				t, err := time.Parse(time.RFC3339, posted)
				if err != nil {
					return fmt.Errorf("--notice-posted-at must be RFC 3339: %w", err)
				}
				opts.NoticePostedAt = &t
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.TransitionMeeting(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "target status")
	cmd.Flags().StringVar(&posted, "notice-posted-at", "", "when notice was posted, RFC 3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func meetingAttendCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "attend <meeting-id> <member-id>",
		Short: "Record a member's attendance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.RecordAttendance(ctx, args[0], args[1], domain.AttendanceStatus(status))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.AttendancePresent), "PRESENT, LATE, ABSENT or EXCUSED")
	return cmd
}

func meetingQuorumCmd() *cobra.Command {
	var agendaItemID string
	cmd := &cobra.Command{
		Use:   "quorum <meeting-id>",
		Short: "Evaluate quorum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.Quorum(ctx, args[0], agendaItemID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(q)
				}
				verdict := "NO QUORUM"
				if q.IsQuorumMet {
					verdict = "QUORUM"
				}
				fmt.Printf("%s: %d present, %d recused, %d required of %d seats\n",
					verdict, q.PresentMembers, q.RecusedMembers, q.RequiredForQuorum, q.TotalSeats)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&agendaItemID, "agenda-item", "", "count recusals for this agenda item")
	return cmd
}
