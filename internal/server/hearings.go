package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"townbox/internal/domain"
	"townbox/internal/engine"
	"townbox/internal/findings"
)

// hearingDate parses a calendar date at midnight in the tenant's timezone.
func hearingDate(ctx context.Context, e engine.Engine, s string) (time.Time, error) {
	p, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return time.Time{}, authErr
	}
	cfg, err := e.ConfigFor(ctx, p.TenantID)
	if err != nil {
		return time.Time{}, handleError(err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, handleError(err)
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, newAPIError(http.StatusBadRequest, "bad_request", "hearing_date must be a YYYY-MM-DD date", map[string]any{"hearing_date": s})
	}
	return t, nil
}

func registerHearings(api huma.API, e engine.Engine) {
	type hearingBody struct {
		Body domain.Hearing `json:"body"`
	}
	type hearingList struct {
		Body []domain.Hearing `json:"body"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "calculate-deadlines",
		Method:      http.MethodPost,
		Path:        "/deadlines/calculate",
		Summary:     "Compute newspaper publication deadlines for a hearing",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body DeadlineRequest `json:"body"`
	}) (*struct {
		Body domain.DeadlineCalculation `json:"body"`
	}, error) {
		date, err := hearingDate(ctx, e, input.Body.HearingDate)
		if err != nil {
			return nil, err
		}
		out, err := e.CalculateDeadlines(ctx, date, input.Body.NoticeReason)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DeadlineCalculation `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "schedule-hearing",
		Method:        http.MethodPost,
		Path:          "/hearings",
		Summary:       "Schedule a public hearing and record its deadlines",
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateHearingRequest `json:"body"`
	}) (*hearingBody, error) {
		date, err := hearingDate(ctx, e, input.Body.HearingDate)
		if err != nil {
			return nil, err
		}
		h, err := e.ScheduleHearing(ctx, engine.HearingScheduleOptions{
			ID:           input.Body.ID,
			MeetingID:    input.Body.MeetingID,
			Title:        input.Body.Title,
			NoticeReason: input.Body.NoticeReason,
			HearingDate:  date,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &hearingBody{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-hearings",
		Method:      http.MethodGet,
		Path:        "/hearings",
		Summary:     "List hearings, optionally by risk level",
	}, func(ctx context.Context, input *struct {
		Risk domain.RiskLevel `query:"risk" enum:"LOW,MEDIUM,HIGH,IMPOSSIBLE"`
	}) (*hearingList, error) {
		items, err := e.ListHearings(ctx, input.Risk)
		if err != nil {
			return nil, handleError(err)
		}
		return &hearingList{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-hearing",
		Method:      http.MethodGet,
		Path:        "/hearings/{id}",
		Summary:     "Get a hearing",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*hearingBody, error) {
		h, err := e.GetHearing(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &hearingBody{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-hearing-risk",
		Method:      http.MethodPost,
		Path:        "/hearings/refresh-risk",
		Summary:     "Re-assess risk for every open hearing; returns the ones that changed",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*hearingList, error) {
		changed, err := e.RefreshRisk(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &hearingList{Body: nonNilSlice(changed)}, nil
	})
}

func registerFindings(api huma.API, e engine.Engine) {
	type findingsBody struct {
		Body domain.FindingsOfFact `json:"body"`
	}
	type findingsPath struct {
		ID string `path:"id"`
	}
	findingsErrors := append([]int{http.StatusUnprocessableEntity}, mutationErrors...)

	huma.Register(api, huma.Operation{
		OperationID:   "create-findings",
		Method:        http.MethodPost,
		Path:          "/findings",
		Summary:       "Open findings of fact for a zoning case",
		DefaultStatus: http.StatusCreated,
		Errors:        findingsErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateFindingsRequest `json:"body"`
	}) (*findingsBody, error) {
		f, err := e.CreateFindings(ctx, input.Body.CaseID, input.Body.CaseType)
		if err != nil {
			return nil, handleError(err)
		}
		return &findingsBody{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-findings",
		Method:      http.MethodGet,
		Path:        "/findings/{id}",
		Summary:     "Get findings of fact",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *findingsPath) (*findingsBody, error) {
		f, err := e.GetFindings(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &findingsBody{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-findings",
		Method:      http.MethodGet,
		Path:        "/findings/{id}/evaluation",
		Summary:     "Evaluate whether the findings support approval",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *findingsPath) (*struct {
		Body findings.Evaluation `json:"body"`
	}, error) {
		ev, err := e.EvaluateFindings(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body findings.Evaluation `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-criterion",
		Method:      http.MethodPatch,
		Path:        "/findings/{id}/criteria/{criterion_id}",
		Summary:     "Record staff or board determinations on a criterion",
		Errors:      findingsErrors,
	}, func(ctx context.Context, input *struct {
		ID          string                 `path:"id"`
		CriterionID string                 `path:"criterion_id"`
		Body        UpdateCriterionRequest `json:"body"`
	}) (*findingsBody, error) {
		f, err := e.UpdateCriterion(ctx, input.ID, input.CriterionID, findings.CriterionUpdate{
			StaffDetermination: input.Body.StaffDetermination,
			BoardDetermination: input.Body.BoardDetermination,
			Rationale:          input.Body.Rationale,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &findingsBody{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-condition",
		Method:        http.MethodPost,
		Path:          "/findings/{id}/conditions",
		Summary:       "Attach a condition of approval",
		DefaultStatus: http.StatusCreated,
		Errors:        findingsErrors,
	}, func(ctx context.Context, input *struct {
		ID   string           `path:"id"`
		Body ConditionRequest `json:"body"`
	}) (*findingsBody, error) {
		f, err := e.AddCondition(ctx, input.ID, input.Body.Text)
		if err != nil {
			return nil, handleError(err)
		}
		return &findingsBody{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "adopt-findings",
		Method:      http.MethodPost,
		Path:        "/findings/{id}/adopt",
		Summary:     "Adopt findings and lock them",
		Errors:      findingsErrors,
	}, func(ctx context.Context, input *struct {
		ID   string       `path:"id"`
		Body AdoptRequest `json:"body"`
	}) (*findingsBody, error) {
		f, err := e.AdoptFindings(ctx, input.ID, input.Body.Decision)
		if err != nil {
			return nil, handleError(err)
		}
		return &findingsBody{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-findings",
		Method:      http.MethodPost,
		Path:        "/findings/{id}/reject",
		Summary:     "Reject findings",
		Errors:      findingsErrors,
	}, func(ctx context.Context, input *findingsPath) (*findingsBody, error) {
		f, err := e.RejectFindings(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &findingsBody{Body: f}, nil
	})
}
