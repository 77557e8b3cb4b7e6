package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kiln_controller/internal/models"
	"kiln_controller/internal/repository"
	"kiln_controller/internal/service"
)

func TestProgramHandlers_CRUD(t *testing.T) {
	progs := &mockPrograms{programs: map[string]models.FiringProgram{
		"bisque": {Name: "bisque", Segments: []models.Segment{{TargetC: 1000, Ramp: 5 * time.Hour}}},
	}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Programs: progs})

	// list
	w := httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/programs", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d body=%s", w.Code, w.Body.String())
	}
	var list struct {
		Count    int                    `json:"count"`
		Programs []models.FiringProgram `json:"programs"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 1 || list.Programs[0].Segments[0].Ramp != 5*time.Hour {
		t.Fatalf("unexpected list: %+v", list)
	}

	// get
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodGet, "/api/v1/programs/bisque", nil)))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"ramp":"5h0m0s"`)) {
		t.Fatalf("get status=%d body=%s", w.Code, w.Body.String())
	}

	// save
	body := `{"name":"glaze","description":"cone 6","segments":[{"target_c":1222,"ramp":"6h","dwell":"10m"}]}`
	w = httptest.NewRecorder()
	req := withAuth(httptest.NewRequest(http.MethodPost, "/api/v1/programs", bytes.NewBufferString(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("save status=%d body=%s", w.Code, w.Body.String())
	}
	if len(progs.saved) != 1 || progs.saved[0].Segments[0].Dwell != 10*time.Minute {
		t.Fatalf("unexpected saved program: %+v", progs.saved)
	}

	// delete
	w = httptest.NewRecorder()
	r.ServeHTTP(w, withAuth(httptest.NewRequest(http.MethodDelete, "/api/v1/programs/bisque", nil)))
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestProgramHandlers_NotFound(t *testing.T) {
	progs := &mockPrograms{getErr: repository.ErrProgramNotFound, delErr: repository.ErrProgramNotFound}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Programs: progs})

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, withAuth(httptest.NewRequest(method, "/api/v1/programs/missing", nil)))
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s status=%d want 404", method, w.Code)
		}
	}
}
