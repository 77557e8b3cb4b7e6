package handlers

import (
	"context"
	"net/http"

	"kiln_controller/internal/models"
	"kiln_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	// authOp and authErr drive Authenticate. With both nil an operator
	// with parseID is returned.
	authOp  *models.Operator
	authErr error

	lastSignUpUsername string
	lastGenUsername    string
	lastParseToken     string
	lastAuthToken      string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}
func (m *mockAuth) Authenticate(token string) (*models.Operator, error) {
	m.lastAuthToken = token
	if m.authErr != nil {
		return nil, m.authErr
	}
	if m.authOp != nil {
		return m.authOp, nil
	}
	return &models.Operator{ID: m.parseID, Username: "operator"}, nil
}
func (m *mockAuth) EnsureOperator(username, password string) (bool, error) {
	return false, nil
}

type mockKiln struct {
	err      error
	calls    []string
	lastName string
	lastProg models.FiringProgram
}

func (m *mockKiln) record(name string) error {
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockKiln) Load(_ context.Context, name string) error {
	m.lastName = name
	return m.record("load")
}
func (m *mockKiln) LoadProgram(_ context.Context, p models.FiringProgram) error {
	m.lastProg = p
	return m.record("load_program")
}
func (m *mockKiln) Start(context.Context) error            { return m.record("start") }
func (m *mockKiln) Pause(context.Context) error            { return m.record("pause") }
func (m *mockKiln) Resume(context.Context) error           { return m.record("resume") }
func (m *mockKiln) Abort(context.Context) error            { return m.record("abort") }
func (m *mockKiln) Cleanup(context.Context) error          { return m.record("cleanup") }
func (m *mockKiln) AcknowledgeAlarm(context.Context) error { return m.record("alarm_ack") }

type mockMonitoring struct {
	state models.RunSnapshot
	err   error
}

func (m *mockMonitoring) GetState(context.Context) (models.RunSnapshot, error) {
	return m.state, m.err
}
func (m *mockMonitoring) CheckInterrupted(context.Context) (*models.RunSnapshot, error) {
	return nil, nil
}

type mockEventLog struct {
	resp []models.KilnEvent
	err  error
	last service.LogFilter
}

func (m *mockEventLog) List(_ context.Context, f service.LogFilter) ([]models.KilnEvent, error) {
	m.last = f
	return m.resp, m.err
}

type mockPrograms struct {
	programs map[string]models.FiringProgram
	getErr   error
	saveErr  error
	delErr   error
	saved    []models.FiringProgram
}

func (m *mockPrograms) List(context.Context) ([]models.FiringProgram, error) {
	var out []models.FiringProgram
	for _, p := range m.programs {
		out = append(out, p)
	}
	return out, nil
}
func (m *mockPrograms) Get(_ context.Context, name string) (models.FiringProgram, error) {
	if m.getErr != nil {
		return models.FiringProgram{}, m.getErr
	}
	return m.programs[name], nil
}
func (m *mockPrograms) Save(_ context.Context, p models.FiringProgram) error {
	m.saved = append(m.saved, p)
	return m.saveErr
}
func (m *mockPrograms) Delete(context.Context, string) error {
	return m.delErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func withAuth(req *http.Request) *http.Request {
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
