package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/UKPLab/aacl2022-TexPrax/internal/citation"
	"github.com/UKPLab/aacl2022-TexPrax/internal/tracking"
	"github.com/google/uuid"
)

const (
	tasksPath      = "/projects/local.teamboard/tasks2"
	tasksWritePath = tasksPath + "?resolveAAA=true"

	categoryProblem     = "problem"
	categoryContainment = "containment_task"

	ishikawaTemplate         = `{"name":"Problem","children":[{"name":"Maschine","children":[]},{"name":"Methode","children":[]},{"name":"Material","children":[]},{"name":"Mensch","children":[]},{"name":"Umwelt","children":[]}]}`
	customPropertiesTemplate = `{"betroffenesKomponente":{"value":null,"secondTierValue":null},"variante":{"value":null}}`
)

var errUnauthorized = errors.New("teamboard rejected the session token")

type task = map[string]any

type session struct {
	token   string
	userID  string
	user    map[string]any
	groupID string
}

// TeamboardClient files problems, causes and solutions on a teamboard
// instance. It logs in on first use and once more when the token expires.
type TeamboardClient struct {
	baseURL  string
	username string
	password string
	group    string
	client   *http.Client
	now      func() time.Time

	mu      sync.Mutex
	session *session
}

func NewTeamboardClient(baseURL, username, password, group string) *TeamboardClient {
	return &TeamboardClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		group:    group,
		client:   &http.Client{Timeout: 30 * time.Second},
		now:      time.Now,
	}
}

func (c *TeamboardClient) CreateProblem(ctx context.Context, text string) error {
	return c.withSession(ctx, func(s *session) error {
		ts := c.now().UnixMilli()
		problem := task{
			"category":            categoryProblem,
			"taskState":           "CREATED",
			"timeOfCreation":      ts,
			"timeFinishedPlanned": ts,
			"uuidOfCreator":       s.userID,
			"creator":             s.user,
			"taskProperties": map[string]any{
				"problemsolvingType": "1",
				"hasPDCA":            "true",
				"pdcaState":          "0",
				"ishikawa":           ishikawaTemplate,
				"customProperties":   customPropertiesTemplate,
			},
			"uuidOfAssignedGroup": s.groupID,
			"uuidOfAssignedUser":  s.userID,
			"subject":             citation.Truncate(text, citation.SubjectMaxLen),
			"body":                text,
			"archived":            false,
			"timeFinishedActual":  nil,
		}
		return c.putTasks(ctx, s, []task{problem}, nil)
	})
}

func (c *TeamboardClient) FindBySubject(ctx context.Context, subject string) (*tracking.Problem, error) {
	var found *tracking.Problem
	err := c.withSession(ctx, func(s *session) error {
		tasks, err := c.listProblems(ctx, s)
		if err != nil {
			return err
		}
		found = nil
		lookup := strings.TrimSpace(subject)
		for _, t := range tasks {
			sub, _ := t["subject"].(string)
			if sub == "" || !strings.Contains(lookup, sub) {
				continue
			}
			p, err := toProblem(t)
			if err != nil {
				return err
			}
			found = p
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (c *TeamboardClient) AttachCause(ctx context.Context, problem tracking.Problem, text string) error {
	if problem.Fields == nil {
		return fmt.Errorf("problem %s carries no task fields", problem.ID)
	}
	updated := cloneTask(problem.Fields)
	props, _ := updated["taskProperties"].(map[string]any)
	props = cloneTask(props)
	props["problemDefinition"] = text
	updated["taskProperties"] = props

	return c.withSession(ctx, func(s *session) error {
		return c.putTasks(ctx, s, []task{updated}, nil)
	})
}

// AttachSolution creates a containment task linked to the problem and then
// links the problem back to it. A retry after re-login reuses the created
// task instead of creating a second one.
func (c *TeamboardClient) AttachSolution(ctx context.Context, problem tracking.Problem, text string) error {
	if err := uuid.Validate(problem.ID); err != nil {
		return fmt.Errorf("invalid problem id %q: %w", problem.ID, err)
	}
	var solutionID string
	return c.withSession(ctx, func(s *session) error {
		if solutionID == "" {
			id, err := c.createContainmentTask(ctx, s, problem, text)
			if err != nil {
				return err
			}
			solutionID = id
		}

		current, err := c.currentTask(ctx, s, problem)
		if err != nil {
			return err
		}
		current["links"] = map[string]any{"task:" + solutionID: categoryContainment}
		if err := c.putTasks(ctx, s, []task{current}, nil); err != nil {
			return fmt.Errorf("link problem %s to containment task %s: %w", problem.ID, solutionID, err)
		}
		return nil
	})
}

func (c *TeamboardClient) createContainmentTask(ctx context.Context, s *session, problem tracking.Problem, text string) (string, error) {
	ts := c.now().UnixMilli()
	solution := task{
		"category":            categoryContainment,
		"taskState":           "CREATED",
		"timeOfCreation":      ts,
		"timeFinishedPlanned": ts,
		"uuidOfCreator":       s.userID,
		"creator":             s.user,
		"links":               map[string]any{"task:" + problem.ID: categoryProblem},
		"taskProperties":      map[string]any{"customProperties": customPropertiesTemplate},
		"uuidOfAssignedGroup": s.groupID,
		"uuidOfAssignedUser":  s.userID,
		"subject":             "Maßnahme: " + problem.Subject,
		"body":                text,
		"archived":            false,
		"timeFinishedActual":  nil,
	}
	var created []task
	if err := c.putTasks(ctx, s, []task{solution}, &created); err != nil {
		return "", fmt.Errorf("create containment task: %w", err)
	}
	if len(created) == 0 {
		return "", fmt.Errorf("teamboard returned no containment task")
	}
	id, _ := created[0]["uuid"].(string)
	if err := uuid.Validate(id); err != nil {
		return "", fmt.Errorf("invalid containment task id %q: %w", id, err)
	}
	return id, nil
}

// currentTask refetches the problem so the link update does not overwrite
// edits made since the lookup.
func (c *TeamboardClient) currentTask(ctx context.Context, s *session, problem tracking.Problem) (task, error) {
	tasks, err := c.listProblems(ctx, s)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if id, _ := t["uuid"].(string); id == problem.ID {
			return t, nil
		}
	}
	if problem.Fields != nil {
		return cloneTask(problem.Fields), nil
	}
	return nil, fmt.Errorf("%w: %s", tracking.ErrProblemNotFound, problem.ID)
}

func (c *TeamboardClient) listProblems(ctx context.Context, s *session) ([]task, error) {
	return c.listTasks(ctx, s, categoryProblem)
}

func (c *TeamboardClient) listTasks(ctx context.Context, s *session, categories ...string) ([]task, error) {
	query := map[string]any{
		"activeOnly":          true,
		"categories":          categories,
		"firstResult":         0,
		"queryTotalCount":     true,
		"resolveRelations":    true,
		"taskProperties":      map[string]any{},
		"uuidOfAssignedGroup": s.groupID,
	}
	var tasks []task
	if err := c.doJSON(ctx, s, http.MethodGet, tasksPath, query, &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (c *TeamboardClient) putTasks(ctx context.Context, s *session, tasks []task, out any) error {
	return c.doJSON(ctx, s, http.MethodPut, tasksWritePath, tasks, out)
}

// withSession runs fn with a logged-in session and retries it once after a
// fresh login when the token was rejected.
func (c *TeamboardClient) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := c.currentSession(ctx)
	if err != nil {
		return err
	}
	err = fn(s)
	if !errors.Is(err, errUnauthorized) {
		return err
	}
	slog.Info("teamboard token rejected; logging in again")
	c.invalidate(s)
	if s, err = c.currentSession(ctx); err != nil {
		return err
	}
	return fn(s)
}

func (c *TeamboardClient) currentSession(ctx context.Context) (*session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}
	s, err := c.login(ctx)
	if err != nil {
		return nil, fmt.Errorf("teamboard login: %w", err)
	}
	c.session = s
	return s, nil
}

func (c *TeamboardClient) invalidate(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.session = nil
	}
}

func (c *TeamboardClient) login(ctx context.Context) (*session, error) {
	var auth struct {
		Token string `json:"token"`
	}
	creds := map[string]string{"username": c.username, "password": c.password}
	if err := c.doJSON(ctx, nil, http.MethodPost, "/auth/jwt/authenticate", creds, &auth); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if auth.Token == "" {
		return nil, fmt.Errorf("authenticate: empty token")
	}
	s := &session{token: auth.Token}

	var who struct {
		UUID string `json:"uuid"`
	}
	if err := c.doJSON(ctx, s, http.MethodGet, "/auth/whoami", nil, &who); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	if err := uuid.Validate(who.UUID); err != nil {
		return nil, fmt.Errorf("whoami returned invalid uuid %q: %w", who.UUID, err)
	}
	s.userID = who.UUID

	if err := c.doJSON(ctx, s, http.MethodGet, "/aaa/users/me", nil, &s.user); err != nil {
		return nil, fmt.Errorf("load user data: %w", err)
	}

	var groups []struct {
		UUID  string `json:"uuid"`
		Label string `json:"label"`
	}
	if err := c.doJSON(ctx, s, http.MethodGet, "/aaa/groups", nil, &groups); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("user %s belongs to no group", s.userID)
	}
	picked := groups[0]
	for _, g := range groups {
		if g.Label == c.group {
			picked = g
			break
		}
	}
	if picked.Label != c.group {
		slog.Warn("teamboard group not found; using first group", "wanted", c.group, "using", picked.Label)
	}
	s.groupID = picked.UUID

	slog.Info("logged in to teamboard", "user_id", s.userID, "group", picked.Label)
	return s, nil
}

func (c *TeamboardClient) doJSON(ctx context.Context, s *session, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json; charset=UTF-8")
	if s != nil {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusUnauthorized && s != nil {
		return errUnauthorized
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func toProblem(t task) (*tracking.Problem, error) {
	id, _ := t["uuid"].(string)
	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("task has invalid uuid %q: %w", id, err)
	}
	subject, _ := t["subject"].(string)
	body, _ := t["body"].(string)
	return &tracking.Problem{ID: id, Subject: subject, Body: body, Fields: t}, nil
}

func cloneTask(t task) task {
	out := make(task, len(t)+1)
	for k, v := range t {
		out[k] = v
	}
	return out
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
