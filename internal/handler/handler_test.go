package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradua/ceremonia-api/internal/broadcast"
	"github.com/gradua/ceremonia-api/internal/models"
	"github.com/gradua/ceremonia-api/internal/repository"
	"github.com/gradua/ceremonia-api/internal/service"
	"github.com/gradua/ceremonia-api/pkg/config"
	"github.com/gradua/ceremonia-api/pkg/retry"
)

// memStore is an in-memory workbook backing the full handler stack.
type memStore struct {
	mu     sync.Mutex
	sheets map[string][][]string

	writeFailures int
	writeCalls    int
}

func (m *memStore) Read(_ context.Context, sheet string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrSheetNotFound, sheet)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (m *memStore) ListSheets(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.sheets))
	for name := range m.sheets {
		names = append(names, name)
	}
	return names, nil
}

func (m *memStore) WriteCell(_ context.Context, sheet string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.writeFailures > 0 {
		m.writeFailures--
		return fmt.Errorf("transient write failure")
	}
	rows, ok := m.sheets[sheet]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrSheetNotFound, sheet)
	}
	for len(rows) < row {
		rows = append(rows, nil)
	}
	for len(rows[row-1]) < col {
		rows[row-1] = append(rows[row-1], "")
	}
	rows[row-1][col-1] = value
	m.sheets[sheet] = rows
	return nil
}

func (m *memStore) RenameSheet(_ context.Context, oldName, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrSheetNotFound, oldName)
	}
	delete(m.sheets, oldName)
	m.sheets[newName] = rows
	return nil
}

func (m *memStore) cell(sheet string, row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.sheets[sheet]
	if len(rows) < row || len(rows[row-1]) < col {
		return ""
	}
	return rows[row-1][col-1]
}

func ceremonyStore() *memStore {
	return &memStore{sheets: map[string][][]string{
		"2026-09-01": {
			{"Codigo", "Nombres", "Apellidos", "Carrera", "Bloque", "Fila"},
			{"abc123", "Ana", "Pérez", "Sistemas", "A", "1"},
			{"def456", "Luis", "Mora", "Civil", "A", "1"},
		},
		"2026-09-02-B-off": {
			{"Codigo", "Nombres", "Apellidos", "Carrera", "Bloque", "Fila"},
			{"ggg777", "Eva", "Ruiz", "Derecho", "B", "1"},
		},
	}}
}

func buildRouter(store *memStore, hub *broadcast.Hub) *gin.Engine {
	gin.SetMode(gin.TestMode)

	roster := service.NewRosterService(store, nil,
		config.WorkbookConfig{SeatPolicy: config.SeatPolicyComputed, SeatsPerRow: 21},
		config.RosterConfig{}, time.UTC, nil, nil)
	policy := retry.NewPolicy(3, time.Second, nil).WithSleep(func(context.Context, time.Duration) error { return nil })
	attendance := service.NewAttendanceService(store, roster, hub, nil, policy, 7, time.UTC, nil, nil, nil)
	admin := service.NewSheetAdminService(store, nil, nil)

	studentH := NewStudentHandler(roster)
	attendanceH := NewAttendanceHandler(attendance)
	eventsH := NewEventsHandler(roster, hub, 50*time.Millisecond)
	sheetH := NewSheetHandler(admin)

	r := gin.New()
	api := r.Group("/api")
	api.GET("/students", studentH.List)
	api.GET("/students/:code", studentH.Get)
	api.POST("/attendance", attendanceH.Mark)
	api.GET("/attendance", attendanceH.List)
	api.GET("/attendance/export", attendanceH.Export)
	api.GET("/attendance/events", eventsH.Stream)
	api.GET("/sheets", sheetH.List)
	api.POST("/sheets/set-state", sheetH.SetState)
	return r
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.Contains(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestMarkAttendanceEndToEnd(t *testing.T) {
	store := ceremonyStore()
	hub := broadcast.NewHub(16, nil, nil)
	r := buildRouter(store, hub)

	matching := hub.Subscribe("2026-09-01")
	other := hub.Subscribe("2026-09-02-B")
	defer hub.Unsubscribe(matching.ID)
	defer hub.Unsubscribe(other.ID)

	w, env := doJSON(t, r, http.MethodPost, "/api/attendance",
		map[string]string{"code": " ABC123 ", "date": "2026-09-01"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, env.Error)

	var result service.MarkAttendanceResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Success)
	assert.Equal(t, "abc123", result.Student.Code)
	assert.Equal(t, "A-1", result.Student.Seat)
	assert.Regexp(t, `^\d{2}/\d{2}/\d{4} \d{2}:\d{2}:\d{2}$`, result.Timestamp)

	// The timestamp lands in the student's own row of the attendance column.
	assert.Equal(t, result.Timestamp, store.cell("2026-09-01", 2, 7))

	select {
	case event := <-matching.C:
		assert.Equal(t, "abc123", event.Code)
		assert.Equal(t, "2026-09-01", event.Ceremony)
		assert.Equal(t, result.Timestamp, event.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("matching subscriber received no event")
	}
	select {
	case event := <-other.C:
		t.Fatalf("other partition unexpectedly received %+v", event)
	default:
	}
}

func TestMarkAttendanceRetriesThroughTheStack(t *testing.T) {
	store := ceremonyStore()
	store.writeFailures = 2
	r := buildRouter(store, broadcast.NewHub(16, nil, nil))

	w, env := doJSON(t, r, http.MethodPost, "/api/attendance",
		map[string]string{"code": "abc123", "date": "2026-09-01"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, env.Error)
	assert.Equal(t, 3, store.writeCalls)
}

func TestMarkAttendanceErrors(t *testing.T) {
	store := ceremonyStore()
	r := buildRouter(store, broadcast.NewHub(16, nil, nil))

	cases := []struct {
		name   string
		body   map[string]string
		status int
		code   string
	}{
		{"unknown student", map[string]string{"code": "zzz", "date": "2026-09-01"}, http.StatusNotFound, "NOT_FOUND"},
		{"no ceremony", map[string]string{"code": "abc123", "date": "2026-12-24"}, http.StatusNotFound, "NO_CEREMONY"},
		{"inactive ceremony", map[string]string{"code": "ggg777", "date": "2026-09-02", "ceremony": "B"}, http.StatusForbidden, "CEREMONY_INACTIVE"},
		{"missing code", map[string]string{"date": "2026-09-01"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad date", map[string]string{"code": "abc123", "date": "yesterday"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := doJSON(t, r, http.MethodPost, "/api/attendance", tc.body)
			assert.Equal(t, tc.status, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestMarkAttendanceWriteFailureSurfaces(t *testing.T) {
	store := ceremonyStore()
	store.writeFailures = 10
	r := buildRouter(store, broadcast.NewHub(16, nil, nil))

	w, env := doJSON(t, r, http.MethodPost, "/api/attendance",
		map[string]string{"code": "abc123", "date": "2026-09-01"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "WRITE_FAILED", env.Error.Code)
	assert.Equal(t, 3, store.writeCalls)
}

func TestStudentEndpoints(t *testing.T) {
	r := buildRouter(ceremonyStore(), broadcast.NewHub(16, nil, nil))

	w, env := doJSON(t, r, http.MethodGet, "/api/students?date=2026-09-01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		Ceremony string                          `json:"ceremony"`
		Active   bool                            `json:"active"`
		Count    int                             `json:"count"`
		Students map[string]models.StudentRecord `json:"students"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Equal(t, "2026-09-01", listing.Ceremony)
	assert.True(t, listing.Active)
	require.Equal(t, 2, listing.Count)
	assert.Equal(t, "A-1", listing.Students["abc123"].Seat)
	assert.Equal(t, "A-2", listing.Students["def456"].Seat)

	w, env = doJSON(t, r, http.MethodGet, "/api/students/DEF456?date=2026-09-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var student models.StudentRecord
	require.NoError(t, json.Unmarshal(env.Data, &student))
	assert.Equal(t, "def456", student.Code)
	assert.Equal(t, "A-2", student.Seat)

	w, env = doJSON(t, r, http.MethodGet, "/api/students/nobody?date=2026-09-01", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestAttendanceListEndpoint(t *testing.T) {
	store := ceremonyStore()
	r := buildRouter(store, broadcast.NewHub(16, nil, nil))

	w, env := doJSON(t, r, http.MethodPost, "/api/attendance",
		map[string]string{"code": "def456", "date": "2026-09-01"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, env.Error)

	w, env = doJSON(t, r, http.MethodGet, "/api/attendance?date=2026-09-01", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list models.AttendanceList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "def456", list.Students[0].Code)
	assert.Equal(t, "2026-09-01", list.Students[0].Ceremony)
}

func TestAttendanceExportEndpoint(t *testing.T) {
	store := ceremonyStore()
	r := buildRouter(store, broadcast.NewHub(16, nil, nil))

	_, env := doJSON(t, r, http.MethodPost, "/api/attendance",
		map[string]string{"code": "abc123", "date": "2026-09-01"})
	require.Nil(t, env.Error)

	w, _ := doJSON(t, r, http.MethodGet, "/api/attendance/export?date=2026-09-01&format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "asistencia_2026-09-01.csv")
	assert.Contains(t, w.Body.String(), "abc123")
	assert.Contains(t, w.Body.String(), "A-1")

	w, _ = doJSON(t, r, http.MethodGet, "/api/attendance/export?date=2026-09-01&format=pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w, env = doJSON(t, r, http.MethodGet, "/api/attendance/export?date=2026-09-01&format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestSheetEndpoints(t *testing.T) {
	store := ceremonyStore()
	r := buildRouter(store, broadcast.NewHub(16, nil, nil))

	w, env := doJSON(t, r, http.MethodGet, "/api/sheets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Count  int                `json:"count"`
		Sheets []models.SheetInfo `json:"sheets"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listing))
	assert.Equal(t, 2, listing.Count)

	w, env = doJSON(t, r, http.MethodPost, "/api/sheets/set-state",
		map[string]interface{}{"date": "2026-09-02", "ceremony": "B", "active": true})
	require.Equal(t, http.StatusOK, w.Code)
	var info models.SheetInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	assert.True(t, info.Active)
	assert.Equal(t, "2026-09-02-B", info.Name)

	// The rename is visible to subsequent marking.
	w, env = doJSON(t, r, http.MethodPost, "/api/attendance",
		map[string]string{"code": "ggg777", "date": "2026-09-02", "ceremony": "B"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Nil(t, env.Error)
	assert.NotEqual(t, "", store.cell("2026-09-02-B", 2, 7))
}

func TestEventsStream(t *testing.T) {
	store := ceremonyStore()
	hub := broadcast.NewHub(16, nil, nil)
	r := buildRouter(store, hub)

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/attendance/events?date=2026-09-01")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected", strings.TrimRight(line, "\n"))

	// One subscriber is now registered; mark a student and expect its frame.
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)
	_, env := doJSON(t, r, http.MethodPost, "/api/attendance",
		map[string]string{"code": "abc123", "date": "2026-09-01"})
	require.Nil(t, env.Error)

	deadline := time.After(2 * time.Second)
	frames := make(chan string, 8)
	go func() {
		for {
			l, rerr := reader.ReadString('\n')
			if rerr != nil {
				close(frames)
				return
			}
			frames <- strings.TrimRight(l, "\n")
		}
	}()

	var sawEvent, sawData bool
	for !(sawEvent && sawData) {
		select {
		case l, ok := <-frames:
			if !ok {
				t.Fatal("stream closed before the event arrived")
			}
			if l == "event:attendance-update" || l == "event: attendance-update" {
				sawEvent = true
			}
			if strings.HasPrefix(l, "data:") && strings.Contains(l, "abc123") {
				sawData = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for the attendance event")
		}
	}
}

func TestEventsStreamUnknownCeremony(t *testing.T) {
	r := buildRouter(ceremonyStore(), broadcast.NewHub(16, nil, nil))

	w, env := doJSON(t, r, http.MethodGet, "/api/attendance/events?date=2026-12-24", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NO_CEREMONY", env.Error.Code)
}
