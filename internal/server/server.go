package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"coopline/internal/config"
	"coopline/internal/domain"
	"coopline/internal/engine"
	"coopline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"position p1: cannot mark_pending while closed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Coopline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Coopline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStudents(group, cfg.Engine)
	registerFaculty(group, cfg.Engine)
	registerPositions(group, cfg.Engine)
	registerApplications(group, cfg.Engine)
	registerCoop(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerProgramConfig(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		details := make(map[string]any, len(ve.Fields))
		for k, v := range ve.Fields {
			details[k] = v
		}
		return newAPIError(http.StatusBadRequest, "validation_error", err.Error(), details)
	}
	var te *engine.InvalidTransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"entity":  te.Entity,
			"current": te.Current,
			"op":      te.Op,
		})
	}
	var ae *engine.AuthorizationError
	if errors.As(err, &ae) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "unique constraint"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Coopline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStudents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-student",
		Method:        http.MethodPost,
		Path:          "/students",
		Summary:       "Register student",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RegisterStudentRequest `json:"body"`
	}) (*struct {
		Body domain.Student `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.RegisterStudent(ctx, engine.StudentRegisterOptions{
			ID:                   stringOrEmpty(input.Body.ID),
			FullName:             input.Body.FullName,
			Email:                input.Body.Email,
			Department:           input.Body.Department,
			Major:                stringOrEmpty(input.Body.Major),
			CreditHoursCompleted: input.Body.CreditHoursCompleted,
			GPA:                  input.Body.GPA,
			StartTerm:            stringOrEmpty(input.Body.StartTerm),
			IsTransfer:           input.Body.IsTransfer,
			CompletedSemesters:   input.Body.CompletedSemesters,
			ResumeRef:            stringOrEmpty(input.Body.ResumeRef),
			ActorID:              actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Student `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-student",
		Method:      http.MethodGet,
		Path:        "/students/{student_id}",
		Summary:     "Get student",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		StudentID string `path:"student_id"`
	}) (*struct {
		Body domain.Student `json:"body"`
	}, error) {
		s, err := e.Repo.GetStudent(ctx, input.StudentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Student `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-students",
		Method:      http.MethodGet,
		Path:        "/students",
		Summary:     "List students",
	}, func(ctx context.Context, input *struct {
		Department string `query:"department"`
	}) (*struct {
		Body []domain.Student `json:"body"`
	}, error) {
		items, err := e.Repo.ListStudents(ctx, input.Department)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Student `json:"body"`
		}{Body: items}, nil
	})
}

func registerFaculty(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-faculty",
		Method:        http.MethodPost,
		Path:          "/faculty",
		Summary:       "Register faculty coordinator",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RegisterFacultyRequest `json:"body"`
	}) (*struct {
		Body domain.Faculty `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.RegisterFaculty(ctx, engine.FacultyRegisterOptions{
			ID:         stringOrEmpty(input.Body.ID),
			FullName:   input.Body.FullName,
			Email:      input.Body.Email,
			Department: input.Body.Department,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Faculty `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-faculty",
		Method:      http.MethodGet,
		Path:        "/faculty/{faculty_id}",
		Summary:     "Get faculty coordinator",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		FacultyID string `path:"faculty_id"`
	}) (*struct {
		Body domain.Faculty `json:"body"`
	}, error) {
		f, err := e.Repo.GetFaculty(ctx, input.FacultyID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Faculty `json:"body"`
		}{Body: f}, nil
	})
}

func registerPositions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "open-position",
		Method:        http.MethodPost,
		Path:          "/positions",
		Summary:       "Post a position",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body OpenPositionRequest `json:"body"`
	}) (*struct {
		Body domain.Position `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.OpenPosition(ctx, engine.PositionOpenOptions{
			ID:               stringOrEmpty(input.Body.ID),
			EmployerID:       input.Body.EmployerID,
			Title:            input.Body.Title,
			Description:      input.Body.Description,
			Weeks:            input.Body.Weeks,
			HoursPerWeek:     input.Body.HoursPerWeek,
			Location:         stringOrEmpty(input.Body.Location),
			MajorsOfInterest: input.Body.MajorsOfInterest,
			RequiredSkills:   input.Body.RequiredSkills,
			PreferredSkills:  input.Body.PreferredSkills,
			Salary:           stringOrEmpty(input.Body.Salary),
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Position `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-position",
		Method:      http.MethodGet,
		Path:        "/positions/{position_id}",
		Summary:     "Get position",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		PositionID string `path:"position_id"`
	}) (*struct {
		Body domain.Position `json:"body"`
	}, error) {
		p, err := e.Repo.GetPosition(ctx, input.PositionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Position `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-positions",
		Method:      http.MethodGet,
		Path:        "/positions",
		Summary:     "List positions",
	}, func(ctx context.Context, input *struct {
		EmployerID string `query:"employer_id"`
		Status     string `query:"status"`
		Location   string `query:"location"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.Position `json:"body"`
	}, error) {
		items, err := e.Repo.ListPositions(ctx, repo.PositionFilters{
			EmployerID: input.EmployerID,
			Status:     input.Status,
			Location:   input.Location,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Position `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-student",
		Method:      http.MethodPost,
		Path:        "/positions/{position_id}/select",
		Summary:     "Select a student and mark the position pending",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		PositionID string               `path:"position_id"`
		Body       SelectStudentRequest `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.MarkPending(ctx, engine.MarkPendingOptions{
			PositionID:        input.PositionID,
			SelectedStudentID: input.Body.SelectedStudentID,
			OfferLetter:       stringOrEmpty(input.Body.OfferLetter),
			ActorID:           actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-position",
		Method:      http.MethodPost,
		Path:        "/positions/{position_id}/close",
		Summary:     "Close position",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		PositionID string `path:"position_id"`
	}) (*struct {
		Body domain.Position `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.ClosePosition(ctx, input.PositionID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Position `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "apply",
		Method:        http.MethodPost,
		Path:          "/positions/{position_id}/applications",
		Summary:       "Apply to a position",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		PositionID string       `path:"position_id"`
		Body       ApplyRequest `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Apply(ctx, input.PositionID, input.Body.StudentID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: a}, nil
	})
}

func registerApplications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/applications/{application_id}",
		Summary:     "Get application",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		a, err := e.Repo.GetApplication(ctx, input.ApplicationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/applications",
		Summary:     "List applications",
	}, func(ctx context.Context, input *struct {
		PositionID string `query:"position_id"`
		StudentID  string `query:"student_id"`
		Status     string `query:"status"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.Application `json:"body"`
	}, error) {
		items, err := e.Repo.ListApplications(ctx, repo.ApplicationFilters{
			PositionID: input.PositionID,
			StudentID:  input.StudentID,
			Status:     input.Status,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Application `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-coop",
		Method:      http.MethodPost,
		Path:        "/applications/{application_id}/accept",
		Summary:     "Accept co-op credit",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.AcceptCoop(ctx, input.ApplicationID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decline-coop",
		Method:      http.MethodPost,
		Path:        "/applications/{application_id}/decline",
		Summary:     "Decline co-op credit",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ApplicationID string `path:"application_id"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.DeclineCoop(ctx, input.ApplicationID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-summary",
		Method:      http.MethodPost,
		Path:        "/applications/{application_id}/summary",
		Summary:     "Submit co-op work summary",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ApplicationID string               `path:"application_id"`
		Body          SubmitSummaryRequest `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.SubmitSummary(ctx, input.ApplicationID, input.Body.SummaryText, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "grade-coop",
		Method:      http.MethodPost,
		Path:        "/applications/{application_id}/grade",
		Summary:     "Grade co-op summary",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ApplicationID string       `path:"application_id"`
		Body          GradeRequest `json:"body"`
	}) (*struct {
		Body domain.Application `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Grade(ctx, engine.GradeOptions{
			ApplicationID: input.ApplicationID,
			Grade:         input.Body.Grade,
			CoordinatorID: input.Body.CoordinatorID,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Application `json:"body"`
		}{Body: a}, nil
	})
}

func registerCoop(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "coop-review",
		Method:      http.MethodGet,
		Path:        "/coop/review",
		Summary:     "Coordinator review surface",
	}, func(ctx context.Context, input *struct {
		Department string `query:"department"`
		Status     string `query:"status"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.CoopReviewItem `json:"body"`
	}, error) {
		items, err := e.ListCoopApplications(ctx, input.Department, input.Status, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.CoopReviewItem `json:"body"`
		}{Body: items}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit"`
		Cursor     int64  `query:"cursor"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit, input.Cursor, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}

func registerProgramConfig(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-program-config",
		Method:      http.MethodGet,
		Path:        "/config",
		Summary:     "Get program config",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body config.Config `json:"body"`
	}, error) {
		if e.Config == nil {
			return nil, newAPIError(http.StatusNotFound, "not_found", "config not loaded", nil)
		}
		return &struct {
			Body config.Config `json:"body"`
		}{Body: *e.Config}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/api-keys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		if input.Body.Key == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "key is required", nil)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.EnsureActor(ctx, input.Body.ActorID); err != nil {
			return nil, handleError(err)
		}
		key := domain.APIKey{
			ID:      uuid.New().String(),
			ActorID: input.Body.ActorID,
			Name:    stringOrEmpty(input.Body.Name),
			KeyHash: repo.HashAPIKey(input.Body.Key),
		}
		if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
			return nil, handleError(err)
		}
		stored, err := e.Repo.GetAPIKeyByHash(ctx, key.KeyHash)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: apiKeyResponse(stored)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/api-keys",
		Summary:     "List API keys",
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		keys, err := e.Repo.ListAPIKeys(ctx, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse(k))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/api-keys/{key_id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteAPIKey(ctx, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
