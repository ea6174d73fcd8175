package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"townbox/internal/domain"
	"townbox/internal/engine"
)

type actionBody struct {
	Body domain.Action `json:"body"`
}

type actionPath struct {
	ID string `path:"id"`
}

func registerActions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-action",
		Method:        http.MethodPost,
		Path:          "/meetings/{id}/actions",
		Summary:       "Put a motion, resolution or ordinance on the floor",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body CreateActionRequest `json:"body"`
	}) (*actionBody, error) {
		a, err := e.CreateAction(ctx, engine.ActionCreateOptions{
			ID:           input.Body.ID,
			MeetingID:    input.ID,
			AgendaItemID: input.Body.AgendaItemID,
			Type:         input.Body.Type,
			Description:  input.Body.Description,
			MovedBy:      input.Body.MovedBy,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &actionBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-action",
		Method:      http.MethodGet,
		Path:        "/actions/{id}",
		Summary:     "Get an action",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *actionPath) (*actionBody, error) {
		a, err := e.GetAction(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &actionBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "second-action",
		Method:      http.MethodPost,
		Path:        "/actions/{id}/second",
		Summary:     "Second a pending action",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body SecondRequest `json:"body"`
	}) (*actionBody, error) {
		a, err := e.SecondAction(ctx, input.ID, input.Body.MemberID)
		if err != nil {
			return nil, handleError(err)
		}
		return &actionBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "open-voting",
		Method:      http.MethodPost,
		Path:        "/actions/{id}/open-voting",
		Summary:     "Open voting on an action",
		Description: "Refused without a second on a motion, during an executive session, or without quorum.",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *actionPath) (*actionBody, error) {
		a, err := e.OpenVoting(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &actionBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "cast-vote",
		Method:        http.MethodPost,
		Path:          "/actions/{id}/votes",
		Summary:       "Record a member's vote",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body CastVoteRequest `json:"body"`
	}) (*struct {
		Body domain.VoteRecord `json:"body"`
	}, error) {
		v, err := e.CastVote(ctx, input.ID, input.Body.MemberID, input.Body.Vote)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.VoteRecord `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-votes",
		Method:      http.MethodGet,
		Path:        "/actions/{id}/votes",
		Summary:     "List votes recorded on an action",
	}, func(ctx context.Context, input *actionPath) (*struct {
		Body []domain.VoteRecord `json:"body"`
	}, error) {
		votes, err := e.ListVotes(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.VoteRecord `json:"body"`
		}{Body: nonNilSlice(votes)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-voting",
		Method:      http.MethodPost,
		Path:        "/actions/{id}/close-voting",
		Summary:     "Tally the votes and settle the action",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *actionPath) (*actionBody, error) {
		a, err := e.CloseVoting(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &actionBody{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "withdraw-action",
		Method:      http.MethodPost,
		Path:        "/actions/{id}/withdraw",
		Summary:     "Withdraw a pending action",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *actionPath) (*actionBody, error) {
		a, err := e.WithdrawAction(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &actionBody{Body: a}, nil
	})
}

func registerSessions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-executive-session",
		Method:        http.MethodPost,
		Path:          "/meetings/{id}/executive-sessions",
		Summary:       "Schedule an executive session for an enumerated statutory reason",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body CreateSessionRequest `json:"body"`
	}) (*struct {
		Body domain.ExecutiveSession `json:"body"`
	}, error) {
		s, err := e.CreateExecutiveSession(ctx, input.ID, input.Body.Reason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ExecutiveSession `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-executive-sessions",
		Method:      http.MethodGet,
		Path:        "/meetings/{id}/executive-sessions",
		Summary:     "List executive sessions of a meeting",
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.ExecutiveSession `json:"body"`
	}, error) {
		items, err := e.ListExecutiveSessions(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ExecutiveSession `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-executive-session",
		Method:      http.MethodPost,
		Path:        "/executive-sessions/{id}/transition",
		Summary:     "Convene, end, certify or cancel an executive session",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body SessionTransitionRequest `json:"body"`
	}) (*struct {
		Body domain.ExecutiveSession `json:"body"`
	}, error) {
		s, err := e.TransitionExecutiveSession(ctx, input.ID, input.Body.To)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ExecutiveSession `json:"body"`
		}{Body: s}, nil
	})
}

func registerMinutes(api huma.API, e engine.Engine) {
	type minutesBody struct {
		Body domain.Minutes `json:"body"`
	}

	huma.Register(api, huma.Operation{
		OperationID:   "create-minutes",
		Method:        http.MethodPost,
		Path:          "/meetings/{id}/minutes",
		Summary:       "Start draft minutes for a meeting",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body MinutesRequest `json:"body"`
	}) (*minutesBody, error) {
		m, err := e.CreateMinutes(ctx, input.ID, input.Body.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &minutesBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-minutes",
		Method:      http.MethodGet,
		Path:        "/minutes/{id}",
		Summary:     "Get minutes",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*minutesBody, error) {
		m, err := e.GetMinutes(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &minutesBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-minutes",
		Method:      http.MethodPut,
		Path:        "/minutes/{id}/body",
		Summary:     "Replace the text of draft minutes",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body MinutesRequest `json:"body"`
	}) (*minutesBody, error) {
		m, err := e.UpdateMinutesBody(ctx, input.ID, input.Body.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &minutesBody{Body: m}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-minutes",
		Method:      http.MethodPost,
		Path:        "/minutes/{id}/transition",
		Summary:     "Move minutes through review and approval",
		Description: "APPROVED requires every executive session of the meeting certified or cancelled.",
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body MinutesTransitionRequest `json:"body"`
	}) (*minutesBody, error) {
		m, err := e.TransitionMinutes(ctx, input.ID, input.Body.To)
		if err != nil {
			return nil, handleError(err)
		}
		return &minutesBody{Body: m}, nil
	})
}
