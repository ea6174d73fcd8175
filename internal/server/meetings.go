package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"townbox/internal/domain"
	"townbox/internal/engine"
	"townbox/internal/quorum"
)

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

type meetingBody struct {
	Body domain.Meeting `json:"body"`
}

func parseTimestamp(field, s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, newAPIError(http.StatusBadRequest, "bad_request", field+" must be an RFC 3339 timestamp", map[string]any{field: s})
	}
	return t, nil
}

func registerMeetings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-body",
		Method:        http.MethodPost,
		Path:          "/bodies",
		Summary:       "Create a governing body",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateBodyRequest `json:"body"`
	}) (*struct {
		Body domain.GoverningBody `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		b, err := e.CreateBody(ctx, domain.GoverningBody{
			ID:           input.Body.ID,
			Name:         input.Body.Name,
			TotalSeats:   input.Body.TotalSeats,
			QuorumType:   input.Body.QuorumType,
			QuorumNumber: input.Body.QuorumNumber,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.GoverningBody `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-body",
		Method:      http.MethodGet,
		Path:        "/bodies/{id}",
		Summary:     "Get a governing body",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.GoverningBody `json:"body"`
	}, error) {
		b, err := e.GetBody(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.GoverningBody `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-meeting",
		Method:        http.MethodPost,
		Path:          "/meetings",
		Summary:       "Create a meeting in DRAFT",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateMeetingRequest `json:"body"`
	}) (*meetingBody, error) {
		start, err := parseTimestamp("scheduled_start", input.Body.ScheduledStart)
		if err != nil {
			return nil, err
		}
		m, err := e.CreateMeeting(ctx, engine.MeetingCreateOptions{
			ID:             input.Body.ID,
			BodyID:         input.Body.BodyID,
			Title:          input.Body.Title,
			Location:       input.Body.Location,
			ScheduledStart: start,
			IsEmergency:    input.Body.IsEmergency,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &meetingBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-meetings",
		Method:      http.MethodGet,
		Path:        "/meetings",
		Summary:     "List meetings",
	}, func(ctx context.Context, input *struct {
		BodyID string               `query:"body_id"`
		Status domain.MeetingStatus `query:"status" enum:"DRAFT,SCHEDULED,NOTICED,IN_PROGRESS,RECESSED,ADJOURNED,CANCELLED"`
	}) (*struct {
		Body []domain.Meeting `json:"body"`
	}, error) {
		items, err := e.ListMeetings(ctx, input.BodyID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Meeting `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-meeting",
		Method:      http.MethodGet,
		Path:        "/meetings/{id}",
		Summary:     "Get a meeting",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*meetingBody, error) {
		m, err := e.GetMeeting(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &meetingBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-meeting",
		Method:      http.MethodPost,
		Path:        "/meetings/{id}/transition",
		Summary:     "Move a meeting to another status",
		Description: "NOTICED checks the posting lead time; ADJOURNED requires every executive session certified or cancelled.",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body MeetingTransitionRequest `json:"body"`
	}) (*meetingBody, error) {
		opts := engine.MeetingTransitionOptions{ID: input.ID, To: input.Body.To}
		if input.Body.NoticePostedAt != "" {
			posted, err := parseTimestamp("notice_posted_at", input.Body.NoticePostedAt)
			if err != nil {
				return nil, err
			}
			opts.NoticePostedAt = &posted
		}
		m, err := e.TransitionMeeting(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &meetingBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-attendance",
		Method:      http.MethodPut,
		Path:        "/meetings/{id}/attendance/{member_id}",
		Summary:     "Record a member's attendance",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID       string            `path:"id"`
		MemberID string            `path:"member_id"`
		Body     AttendanceRequest `json:"body"`
	}) (*struct {
		Body domain.MeetingAttendance `json:"body"`
	}, error) {
		a, err := e.RecordAttendance(ctx, input.ID, input.MemberID, input.Body.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MeetingAttendance `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-recusal",
		Method:        http.MethodPost,
		Path:          "/meetings/{id}/recusals",
		Summary:       "Record a conflict-of-interest recusal",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body RecusalRequest `json:"body"`
	}) (*struct {
		Body domain.MemberRecusal `json:"body"`
	}, error) {
		r, err := e.RecordRecusal(ctx, input.ID, input.Body.MemberID, input.Body.AgendaItemID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.MemberRecusal `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-quorum",
		Method:      http.MethodGet,
		Path:        "/meetings/{id}/quorum",
		Summary:     "Evaluate quorum, optionally for one agenda item",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID           string `path:"id"`
		AgendaItemID string `query:"agenda_item_id"`
	}) (*struct {
		Body quorum.Result `json:"body"`
	}, error) {
		q, err := e.Quorum(ctx, input.ID, input.AgendaItemID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body quorum.Result `json:"body"`
		}{Body: q}, nil
	})
}

func registerAgendas(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-agenda",
		Method:        http.MethodPost,
		Path:          "/meetings/{id}/agenda",
		Summary:       "Start a draft agenda for a meeting",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Agenda `json:"body"`
	}, error) {
		a, err := e.CreateAgenda(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Agenda `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agenda",
		Method:      http.MethodGet,
		Path:        "/agendas/{id}",
		Summary:     "Get an agenda with its items",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body engine.AgendaView `json:"body"`
	}, error) {
		v, err := e.GetAgenda(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AgendaView `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-agenda-item",
		Method:        http.MethodPost,
		Path:          "/agendas/{id}/items",
		Summary:       "Append an agenda item",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AgendaItemRequest `json:"body"`
	}) (*struct {
		Body domain.AgendaItem `json:"body"`
	}, error) {
		it, err := e.AddAgendaItem(ctx, input.ID, input.Body.Title)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AgendaItem `json:"body"`
		}{Body: it}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-agenda",
		Method:      http.MethodPost,
		Path:        "/agendas/{id}/transition",
		Summary:     "Move an agenda to another status",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body AgendaTransitionRequest `json:"body"`
	}) (*struct {
		Body domain.Agenda `json:"body"`
	}, error) {
		a, err := e.TransitionAgenda(ctx, input.ID, input.Body.To)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Agenda `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-agenda-item",
		Method:      http.MethodPost,
		Path:        "/agenda-items/{id}/transition",
		Summary:     "Move an agenda item to another status",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                      `path:"id"`
		Body AgendaItemTransitionRequest `json:"body"`
	}) (*struct {
		Body domain.AgendaItem `json:"body"`
	}, error) {
		it, err := e.TransitionAgendaItem(ctx, input.ID, input.Body.To)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.AgendaItem `json:"body"`
		}{Body: it}, nil
	})
}
