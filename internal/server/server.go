package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"taskjama/internal/commentary"
	"taskjama/internal/domain"
	"taskjama/internal/engine"
	"taskjama/internal/engine/auth"
	"taskjama/internal/points"
	"taskjama/internal/realtime"
	"taskjama/internal/repo"
	"taskjama/internal/social"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	// Hub serves the battle WebSocket at /ws when set.
	Hub        *realtime.Hub
	Commentary *commentary.Client
	Logger     *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"insufficient_points"`
	Message string         `json:"message" example:"insufficient points"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"required\":50}"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// publicRoutes are reachable without credentials, keyed by path relative to
// the base path. An empty method allows every method.
var publicRoutes = map[string]string{
	"health":       http.MethodGet,
	"users":        http.MethodPost,
	"payment-link": http.MethodGet,
	"openapi.json": http.MethodGet,
}

// New returns an HTTP handler exposing the taskjama API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	critic := cfg.Commentary
	if critic == nil {
		critic = commentary.New("", commentary.WithLogger(logger))
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the requested envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo, publicRoutes))
	hcfg := huma.DefaultConfig("taskjama API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerUsers(group, cfg.Engine, cfg.Auth)
	registerAPIKeys(group, cfg.Engine)
	registerTodos(group, cfg.Engine)
	registerFriends(group, cfg.Engine)
	registerDisruptions(group, cfg.Engine)
	registerCommentary(group, cfg.Engine, critic)
	registerPaymentLink(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)
	if cfg.Hub != nil {
		router.Handle("/ws", cfg.Hub)
	}

	return router, nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
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
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"action": fe.Action})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, points.ErrInsufficientPoints):
		return newAPIError(http.StatusUnprocessableEntity, "insufficient_points", msg, nil)
	case errors.Is(err, engine.ErrAlreadyCompleted):
		return newAPIError(http.StatusConflict, "already_completed", msg, nil)
	case errors.Is(err, social.ErrSelfRequest):
		return newAPIError(http.StatusBadRequest, "self_request", msg, nil)
	case errors.Is(err, social.ErrAlreadyFriends):
		return newAPIError(http.StatusConflict, "already_friends", msg, nil)
	case errors.Is(err, social.ErrAlreadyRequested):
		return newAPIError(http.StatusConflict, "already_requested", msg, nil)
	case errors.Is(err, social.ErrTryAgainLater):
		return newAPIError(http.StatusConflict, "try_again_later", msg, nil)
	case errors.Is(err, social.ErrBlocked):
		return newAPIError(http.StatusConflict, "blocked", msg, nil)
	case errors.Is(err, social.ErrNotPending):
		return newAPIError(http.StatusConflict, "not_pending", msg, nil)
	case errors.Is(err, social.ErrNotCounterparty):
		return newAPIError(http.StatusForbidden, "forbidden", msg, nil)
	case errors.Is(err, repo.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case errors.Is(err, engine.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
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
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range operations(item) {
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func operations(item *huma.PathItem) []*huma.Operation {
	var ops []*huma.Operation
	for _, op := range []*huma.Operation{
		item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
	} {
		if op != nil {
			ops = append(ops, op)
		}
	}
	return ops
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]string{}
	for p, method := range publicRoutes {
		open[path.Join("/", basePath, p)] = method
	}
	for route, item := range oas.Paths {
		for _, op := range operations(item) {
			if method, ok := open[route]; ok && (method == "" || method == op.Method) {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>taskjama API Docs</title>
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

func registerUsers(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create an account",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RegisterRequest `json:"body"`
	}) (*struct {
		Body RegisterResponse `json:"body"`
	}, error) {
		u, err := e.RegisterUser(ctx, engine.RegisterOptions{Email: input.Body.Email, Username: input.Body.Username})
		if err != nil {
			return nil, handleError(err)
		}
		resp := RegisterResponse{User: u}
		if authCfg.JWTSecret != "" {
			token, err := SignToken(authCfg.JWTSecret, u.ID, authCfg.ttl(), time.Now())
			if err != nil {
				return nil, handleError(err)
			}
			resp.Token = token
		}
		return &struct {
			Body RegisterResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user with point balance",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.GetUser(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{user_id}",
		Summary:     "Public profile of a user",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body PublicUserResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		u, err := e.GetUser(ctx, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PublicUserResponse `json:"body"`
		}{Body: PublicUserResponse{UserID: u.ID, Username: u.Username, Points: u.Points}}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/me/api-keys",
		Summary:       "Create an API key; the key is only shown once",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, raw, err := e.CreateAPIKey(ctx, userID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: apiKeyResponse(key, raw)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/me/api-keys",
		Summary:     "List API keys",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		out := []APIKeyResponse{}
		for _, k := range keys {
			out = append(out, apiKeyResponse(k, ""))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-api-key",
		Method:        http.MethodDelete,
		Path:          "/me/api-keys/{key_id}",
		Summary:       "Revoke an API key",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteAPIKey(ctx, userID, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})
}

type todoPath struct {
	TodoID string `path:"todo_id"`
}

func registerTodos(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-todo",
		Method:        http.MethodPost,
		Path:          "/todos",
		Summary:       "Create a todo",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateTodoRequest `json:"body"`
	}) (*struct {
		Body domain.Todo `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTodo(ctx, engine.TodoCreateOptions{
			UserID:      userID,
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			DeadlineAt:  stringOrEmpty(input.Body.DeadlineAt),
			DueDate:     stringOrEmpty(input.Body.DueDate),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Todo `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-todos",
		Method:      http.MethodGet,
		Path:        "/todos",
		Summary:     "List own todos, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Completed string `query:"completed" enum:"true,false"`
	}) (*struct {
		Body []domain.Todo `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var completed *bool
		if input.Completed != "" {
			v, err := strconv.ParseBool(input.Completed)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid completed filter", map[string]any{"completed": input.Completed})
			}
			completed = &v
		}
		items, err := e.ListTodos(ctx, userID, completed)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Todo `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-todo",
		Method:      http.MethodGet,
		Path:        "/todos/{todo_id}",
		Summary:     "Get a todo owned by the caller or a friend",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *todoPath) (*struct {
		Body domain.Todo `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTodo(ctx, userID, input.TodoID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Todo `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-todo",
		Method:      http.MethodPatch,
		Path:        "/todos/{todo_id}",
		Summary:     "Edit a todo",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TodoID string            `path:"todo_id"`
		Body   UpdateTodoRequest `json:"body"`
	}) (*struct {
		Body domain.Todo `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.UpdateTodo(ctx, engine.TodoUpdateOptions{
			UserID:      userID,
			TodoID:      input.TodoID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			DeadlineAt:  input.Body.DeadlineAt,
			DueDate:     input.Body.DueDate,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Todo `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-todo",
		Method:        http.MethodDelete,
		Path:          "/todos/{todo_id}",
		Summary:       "Delete a todo",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *todoPath) (*struct{}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteTodo(ctx, userID, input.TodoID); err != nil {
			return nil, handleError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-todo",
		Method:      http.MethodPost,
		Path:        "/todos/{todo_id}/complete",
		Summary:     "Complete a todo and earn points",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *todoPath) (*struct {
		Body CompleteTodoResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, balance, err := e.CompleteTodo(ctx, userID, input.TodoID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CompleteTodoResponse `json:"body"`
		}{Body: CompleteTodoResponse{Todo: t, Points: balance}}, nil
	})
}

func registerFriends(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "request-friend",
		Method:        http.MethodPost,
		Path:          "/friends/requests",
		Summary:       "Send a friend request by user id or email",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body FriendRequestRequest `json:"body"`
	}) (*struct {
		Body domain.Friendship `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		f, err := e.RequestFriend(ctx, engine.FriendRequestOptions{
			RequesterID: userID,
			TargetID:    input.Body.UserID,
			TargetEmail: input.Body.Email,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Friendship `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pending-requests",
		Method:      http.MethodGet,
		Path:        "/friends/requests",
		Summary:     "Incoming friend requests awaiting a response",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.PendingRequest `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListPendingRequests(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.PendingRequest `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	for _, action := range []struct {
		id     string
		verb   string
		accept bool
	}{
		{id: "accept-friend", verb: "accept", accept: true},
		{id: "reject-friend", verb: "reject"},
	} {
		huma.Register(api, huma.Operation{
			OperationID: action.id,
			Method:      http.MethodPost,
			Path:        "/friends/requests/{friendship_id}/" + action.verb,
			Summary:     strings.ToUpper(action.verb[:1]) + action.verb[1:] + " a friend request",
			Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
		}, func(ctx context.Context, input *struct {
			FriendshipID string `path:"friendship_id"`
		}) (*struct {
			Body domain.Friendship `json:"body"`
		}, error) {
			userID, authErr := userIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			respond := e.RejectFriend
			if action.accept {
				respond = e.AcceptFriend
			}
			f, err := respond(ctx, userID, input.FriendshipID)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Friendship `json:"body"`
			}{Body: f}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-friends",
		Method:      http.MethodGet,
		Path:        "/friends",
		Summary:     "Accepted friends",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Friend `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListFriends(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Friend `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-friend-overdue",
		Method:      http.MethodGet,
		Path:        "/friends/overdue",
		Summary:     "Friends' unfinished todos past their due date",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.OverdueTodo `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListFriendOverdueTodos(ctx, userID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.OverdueTodo `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-friend-todos",
		Method:      http.MethodGet,
		Path:        "/friends/{user_id}/todos",
		Summary:     "A friend's todos",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body []domain.Todo `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListFriendTodos(ctx, userID, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Todo `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}

func registerDisruptions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "disrupt",
		Method:        http.MethodPost,
		Path:          "/disruptions",
		Summary:       "Spend points to corrupt a friend's todo",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body DisruptRequest `json:"body"`
	}) (*struct {
		Body engine.DisruptResult `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := e.Disrupt(ctx, engine.DisruptOptions{
			DisruptorID: userID,
			TodoID:      input.Body.TodoID,
			Type:        input.Body.Type,
		})
		if err != nil {
			if errors.Is(err, points.ErrInsufficientPoints) {
				return nil, newAPIError(http.StatusUnprocessableEntity, "insufficient_points", err.Error(),
					map[string]any{"required": e.Config.Economy.JamaCost})
			}
			return nil, handleError(err)
		}
		return &struct {
			Body engine.DisruptResult `json:"body"`
		}{Body: res}, nil
	})

	for _, list := range []struct {
		id, dir string
		fetch   func(context.Context, string, int) ([]domain.Disruption, error)
	}{
		{id: "list-disruptions-sent", dir: "sent", fetch: e.ListDisruptionsSent},
		{id: "list-disruptions-received", dir: "received", fetch: e.ListDisruptionsReceived},
	} {
		huma.Register(api, huma.Operation{
			OperationID: list.id,
			Method:      http.MethodGet,
			Path:        "/disruptions/" + list.dir,
			Summary:     "Disruptions " + list.dir + ", newest first",
		}, func(ctx context.Context, input *struct {
			Limit int `query:"limit" default:"50"`
		}) (*struct {
			Body []domain.Disruption `json:"body"`
		}, error) {
			userID, authErr := userIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			items, err := list.fetch(ctx, userID, normalizeLimit(input.Limit))
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body []domain.Disruption `json:"body"`
			}{Body: nonNilSlice(items)}, nil
		})
	}
}

func registerCommentary(api huma.API, e engine.Engine, critic *commentary.Client) {
	huma.Register(api, huma.Operation{
		OperationID: "criticize-todo",
		Method:      http.MethodPost,
		Path:        "/commentary/criticism",
		Summary:     "A critical remark about a todo",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body CriticismRequest `json:"body"`
	}) (*struct {
		Body CommentaryResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTodo(ctx, userID, input.Body.TodoID)
		if err != nil {
			return nil, handleError(err)
		}
		var others []commentary.TodoLite
		if input.Body.WithOpenTodos {
			unfinished := false
			rest, err := e.ListTodos(ctx, t.UserID, &unfinished)
			if err != nil {
				return nil, handleError(err)
			}
			for _, o := range rest {
				if o.ID != t.ID {
					others = append(others, todoLite(o))
				}
			}
		}
		return &struct {
			Body CommentaryResponse `json:"body"`
		}{Body: CommentaryResponse{Message: critic.CriticizeBatch(ctx, todoLite(t), others)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "incite",
		Method:      http.MethodPost,
		Path:        "/commentary/incite",
		Summary:     "A provocation about an activity",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body InciteRequest `json:"body"`
	}) (*struct {
		Body CommentaryResponse `json:"body"`
	}, error) {
		if _, authErr := userIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		content := strings.TrimSpace(input.Body.Content)
		if content == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "content is required", nil)
		}
		return &struct {
			Body CommentaryResponse `json:"body"`
		}{Body: CommentaryResponse{Message: critic.Incite(ctx, content)}}, nil
	})
}

func todoLite(t domain.Todo) commentary.TodoLite {
	lite := commentary.TodoLite{Title: t.Title}
	if t.Description != "" {
		desc := t.Description
		lite.Description = &desc
	}
	return lite
}

func registerPaymentLink(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "payment-link",
		Method:      http.MethodGet,
		Path:        "/payment-link",
		Summary:     "Where to buy more points",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PaymentLinkResponse `json:"body"`
	}, error) {
		link := ""
		if e.Config != nil {
			link = strings.TrimSpace(e.Config.Payment.Link)
		}
		if link == "" {
			return nil, newAPIError(http.StatusNotFound, "not_found", "payment link not configured", nil)
		}
		return &struct {
			Body PaymentLinkResponse `json:"body"`
		}{Body: PaymentLinkResponse{URL: link}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent events caused by the caller",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"user,todo,friendship,api_key"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		userID, authErr := userIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEvents(ctx, limit+1, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			ActorID:    userID,
			Before:     cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := EventsResponse{Items: []domain.Event{}}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
