package app

import (
	"bytes"
	"course_gating_backend/internal/config"
	"course_gating_backend/internal/model"
	"course_gating_backend/internal/testutil"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	core   *Core
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.JWT.Secret = "router-test-secret"
	cfg.JWT.ExpireTime = time.Hour
	cfg.Gating.Enabled = true
	cfg.Milestones.Enabled = true

	core := Wire(cfg, testutil.DB(t), nil)
	return &testServer{t: t, router: NewRouter(core, nil), core: core}
}

func (s *testServer) do(method, path, token string, body interface{}) (int, apiResponse) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w.Code, resp
}

// login registers students over the API and seeds staff directly, then logs in.
func (s *testServer) login(email string, role model.UserRole) string {
	s.t.Helper()
	if role == model.Student {
		code, _ := s.do(http.MethodPost, "/api/register", "", gin.H{
			"name": email, "email": email, "password": "password123",
		})
		require.Equal(s.t, http.StatusCreated, code)
	} else {
		testutil.SeedUser(s.t, s.core.DB, email, role)
	}
	return s.token(email)
}

func (s *testServer) token(email string) string {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, "/api/login", "", gin.H{"email": email, "password": "password123"})
	require.Equal(s.t, http.StatusOK, code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(s.t, json.Unmarshal(resp.Data, &data))
	return data.Token
}

func (s *testServer) createBlock(token, courseKey, parent, category string, maxScore float64) string {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, "/api/teacher/courses/"+courseKey+"/blocks", token, gin.H{
		"parentLocation": parent, "category": category, "maxScore": maxScore,
	})
	require.Equal(s.t, http.StatusCreated, code, resp.Message)
	var block model.ContentBlock
	require.NoError(s.t, json.Unmarshal(resp.Data, &block))
	return block.Location
}

func TestGatingFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	teacher := s.login("teacher@example.com", model.Teacher)
	student := s.login("student@example.com", model.Student)

	code, resp := s.do(http.MethodPost, "/api/teacher/courses", teacher, gin.H{
		"org": "edX", "number": "EDX101", "run": "EDX101_RUN1", "enableSubsectionGating": true,
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var course model.Course
	require.NoError(t, json.Unmarshal(resp.Data, &course))
	key := course.CourseKey

	chapter := s.createBlock(teacher, key, course.Location(), model.CategoryChapter, 0)
	seq1 := s.createBlock(teacher, key, chapter, model.CategorySequential, 0)
	seq2 := s.createBlock(teacher, key, chapter, model.CategorySequential, 0)
	vert := s.createBlock(teacher, key, seq1, model.CategoryVertical, 0)
	prob := s.createBlock(teacher, key, vert, model.CategoryProblem, 2)

	code, resp = s.do(http.MethodPost, "/api/teacher/courses/"+key+"/prerequisites", teacher, gin.H{"location": seq1})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var milestone model.Milestone
	require.NoError(t, json.Unmarshal(resp.Data, &milestone))

	code, resp = s.do(http.MethodPut, "/api/teacher/courses/"+key+"/required-content", teacher, gin.H{
		"gatedLocation": seq2, "prereqLocation": seq1, "minScore": 150,
	})
	assert.Equal(t, http.StatusBadRequest, code, resp.Message)

	code, resp = s.do(http.MethodPut, "/api/teacher/courses/"+key+"/required-content", teacher, gin.H{
		"gatedLocation": seq2, "prereqLocation": seq1, "minScore": 50,
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = s.do(http.MethodGet, "/api/teacher/courses/"+key+"/required-content?gated="+url.QueryEscape(seq2), teacher, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"gatedLocation":"`+seq2+`","prereqLocation":"`+seq1+`","minScore":50}`, string(resp.Data))

	code, resp = s.do(http.MethodGet, "/api/courses/"+key+"/gated-content", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `["`+seq2+`"]`, string(resp.Data))

	// the learner cannot choose the denominator
	code, resp = s.do(http.MethodPost, "/api/courses/"+key+"/problems/answer", student, gin.H{
		"location": prob, "earned": 0.01, "possible": 0.01,
	})
	assert.Equal(t, http.StatusBadRequest, code, resp.Message)

	code, resp = s.do(http.MethodPost, "/api/courses/"+key+"/problems/answer", student, gin.H{
		"location": prob, "earned": 1, "possible": 2,
	})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var grade model.SubsectionGrade
	require.NoError(t, json.Unmarshal(resp.Data, &grade))
	assert.Equal(t, seq1, grade.UsageKey)
	assert.Equal(t, 50.0, grade.PercentAll())

	code, resp = s.do(http.MethodGet, "/api/courses/"+key+"/gated-content", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	code, resp = s.do(http.MethodGet, "/api/milestones/"+jsonNumber(milestone.ID)+"/status", student, nil)
	require.Equal(t, http.StatusOK, code)
	var status struct {
		Fulfilled bool `json:"fulfilled"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Fulfilled)

	code, resp = s.do(http.MethodGet, "/api/courses/"+key+"/subsections/grade?location="+url.QueryEscape(seq1), student, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodGet, "/api/courses/"+key+"/subsections/grade?location="+url.QueryEscape(seq2), student, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = s.do(http.MethodPost, "/api/teacher/courses/"+key+"/recalculate", teacher, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"grades":1}`, string(resp.Data))

	code, resp = s.do(http.MethodGet, "/api/teacher/courses/"+key+"/prerequisites", teacher, nil)
	require.Equal(t, http.StatusOK, code)
	var prereqs []map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &prereqs))
	require.Len(t, prereqs, 1)
	assert.Equal(t, seq1, prereqs[0]["blockUsageKey"])
}

func TestAnswerOrphanProblemReturnsNoGrade(t *testing.T) {
	s := newTestServer(t)
	teacher := s.login("teacher@example.com", model.Teacher)
	student := s.login("student@example.com", model.Student)

	code, resp := s.do(http.MethodPost, "/api/teacher/courses", teacher, gin.H{"org": "o", "number": "n", "run": "r"})
	require.Equal(t, http.StatusCreated, code)
	var course model.Course
	require.NoError(t, json.Unmarshal(resp.Data, &course))
	orphan := s.createBlock(teacher, course.CourseKey, course.Location(), model.CategoryProblem, 1)

	code, resp = s.do(http.MethodPost, "/api/courses/"+course.CourseKey+"/problems/answer", student, gin.H{
		"location": orphan, "earned": 1, "possible": 1,
	})
	require.Equal(t, http.StatusOK, code, resp.Message)
	assert.Empty(t, resp.Data)
}

func TestAuthAndRoles(t *testing.T) {
	s := newTestServer(t)
	student := s.login("student@example.com", model.Student)

	code, _ := s.do(http.MethodGet, "/api/courses/course-v1:a+b+c/gated-content", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/courses/course-v1:a+b+c/gated-content", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/api/teacher/courses", student, gin.H{"org": "o", "number": "n", "run": "r"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/api/courses/course-v1:a+b+c/gated-content", student, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/api/register", "", gin.H{
		"name": "x", "email": "student@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, code)

	// a requested staff role is ignored on self-registration
	code, _ = s.do(http.MethodPost, "/api/register", "", gin.H{
		"name": "y", "email": "eager@example.com", "password": "password123", "role": "teacher",
	})
	require.Equal(t, http.StatusCreated, code)
	eager := s.token("eager@example.com")
	code, _ = s.do(http.MethodPost, "/api/teacher/courses", eager, gin.H{"org": "o", "number": "n", "run": "r"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, "/api/login", "", gin.H{"email": "student@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func jsonNumber(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
