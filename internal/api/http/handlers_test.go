package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/loader"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/process/processtest"
	"github.com/GriffinCanCode/AgentOS/appmgr/internal/domain/root"
)

type testServer struct {
	router  *gin.Engine
	tree    *app.Tree
	host    *root.Host
	creator *processtest.Creator
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app"), []byte("pkg"), 0o755))

	creator := processtest.NewCreator()
	tree := app.NewTree(creator, nil)
	host, err := root.New(tree, []string{dir}, nil)
	require.NoError(t, err)
	t.Cleanup(host.Close)

	router := gin.New()
	NewHandlers(tree, host.Loader(), time.Second, nil).Register(router)

	return &testServer{router: router, tree: tree, host: host, creator: creator}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", resp["status"])
	assert.EqualValues(t, 1, resp["environments"])
}

func TestHealthWithoutRoot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandlers(app.NewTree(processtest.NewCreator(), nil), nil, 0, nil).Register(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListPackages(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, "GET", "/packages", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Packages []loader.Package `json:"packages"`
		Count    int              `json:"count"`
	}](t, w)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "file://app", resp.Packages[0].URL)
	assert.EqualValues(t, 3, resp.Packages[0].Size)
}

func TestListEnvironments(t *testing.T) {
	s := setupTestServer(t)
	rootHandle := s.host.Environment().Handle().String()

	w := s.do(t, "POST", "/environments/"+rootHandle+"/children", gin.H{"label": "child"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, "GET", "/environments", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[struct {
		Environments []app.EnvironmentInfo `json:"environments"`
		Count        int                   `json:"count"`
	}](t, w)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, root.Label, resp.Environments[0].Label)
	assert.Equal(t, "child", resp.Environments[1].Label)
	assert.Equal(t, rootHandle, resp.Environments[1].Parent)
}

func TestCreateChild(t *testing.T) {
	s := setupTestServer(t)
	rootHandle := s.host.Environment().Handle().String()

	t.Run("missing label", func(t *testing.T) {
		w := s.do(t, "POST", "/environments/"+rootHandle+"/children", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown parent", func(t *testing.T) {
		w := s.do(t, "POST", "/environments/99.1/children", gin.H{"label": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed handle", func(t *testing.T) {
		w := s.do(t, "GET", "/environments/nope", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("handle with trailing text", func(t *testing.T) {
		w := s.do(t, "GET", "/environments/"+rootHandle+"xyz", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("nested", func(t *testing.T) {
		w := s.do(t, "POST", "/environments/"+rootHandle+"/children", gin.H{"label": "a"})
		require.Equal(t, http.StatusCreated, w.Code)
		child := decode[app.EnvironmentInfo](t, w)
		assert.Equal(t, 1, child.Depth)

		w = s.do(t, "GET", "/environments/"+child.Handle, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "a", decode[app.EnvironmentInfo](t, w).Label)
	})
}

func TestCreateApplicationLifecycle(t *testing.T) {
	s := setupTestServer(t)
	rootHandle := s.host.Environment().Handle().String()

	w := s.do(t, "POST", "/environments/"+rootHandle+"/children", gin.H{"label": "work"})
	require.Equal(t, http.StatusCreated, w.Code)
	child := decode[app.EnvironmentInfo](t, w)

	w = s.do(t, "POST", "/environments/"+child.Handle+"/applications", gin.H{
		"url":       "file://app",
		"arguments": []string{"--flag"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	ctrl := decode[app.ControllerInfo](t, w)
	assert.Equal(t, "file://app", ctrl.URL)
	assert.Equal(t, child.Handle, ctrl.Environment)

	launch := s.creator.Last()
	require.NotNil(t, launch)
	assert.Equal(t, []string{"--flag"}, launch.Info.Arguments)
	assert.Equal(t, []byte("pkg"), launch.Package)

	w = s.do(t, "GET", "/controllers/"+ctrl.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, app.Active, decode[app.ControllerInfo](t, w).State)

	w = s.do(t, "POST", "/controllers/"+ctrl.ID+"/detach", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, app.Detached, decode[app.ControllerInfo](t, w).State)

	w = s.do(t, "DELETE", "/controllers/"+ctrl.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(app.ReasonKilled), decode[map[string]any](t, w)["reason"])
	assert.True(t, launch.Process.Exited())

	w = s.do(t, "GET", "/controllers/"+ctrl.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateApplicationFailures(t *testing.T) {
	s := setupTestServer(t)
	rootHandle := s.host.Environment().Handle().String()

	w := s.do(t, "POST", "/environments/"+rootHandle+"/applications", gin.H{"url": "file://missing"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, "POST", "/environments/"+rootHandle+"/applications", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, s.creator.Launches())
}

func TestDestroyEnvironment(t *testing.T) {
	s := setupTestServer(t)
	rootHandle := s.host.Environment().Handle().String()

	w := s.do(t, "DELETE", "/environments/"+rootHandle, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, "POST", "/environments/"+rootHandle+"/children", gin.H{"label": "doomed"})
	require.Equal(t, http.StatusCreated, w.Code)
	child := decode[app.EnvironmentInfo](t, w)

	w = s.do(t, "POST", "/environments/"+child.Handle+"/applications", gin.H{"url": "file://app"})
	require.Equal(t, http.StatusCreated, w.Code)
	ctrl := decode[app.ControllerInfo](t, w)

	w = s.do(t, "DELETE", "/environments/"+child.Handle, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/environments/"+child.Handle, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/controllers/"+ctrl.ID, nil).Code)
	assert.True(t, s.creator.Last().Process.Exited())
	assert.Equal(t, 1, s.tree.Len())
}

func TestControllerBadID(t *testing.T) {
	s := setupTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/controllers/garbage", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, "DELETE", "/controllers/req_01ARZ3NDEKTSV4RRFFQ69G5FAV", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, "GET", "/controllers/ctl_01ARZ3NDEKTSV4RRFFQ69G5FAV", nil).Code)
}

func TestListControllers(t *testing.T) {
	s := setupTestServer(t)
	rootHandle := s.host.Environment().Handle().String()

	var ids []string
	for i := 0; i < 2; i++ {
		w := s.do(t, "POST", "/environments/"+rootHandle+"/applications", gin.H{"url": "file://app"})
		require.Equal(t, http.StatusCreated, w.Code)
		ids = append(ids, decode[app.ControllerInfo](t, w).ID)
	}
	require.Equal(t, http.StatusOK, s.do(t, "POST", "/controllers/"+ids[1]+"/detach", nil).Code)

	type listing struct {
		Controllers []app.ControllerInfo `json:"controllers"`
		Count       int                  `json:"count"`
	}

	w := s.do(t, "GET", "/controllers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[listing](t, w)
	require.Equal(t, 2, all.Count)
	assert.Equal(t, ids[0], all.Controllers[0].ID)
	assert.Equal(t, ids[1], all.Controllers[1].ID)

	w = s.do(t, "GET", "/controllers?state=detached", nil)
	require.Equal(t, http.StatusOK, w.Code)
	detached := decode[listing](t, w)
	require.Equal(t, 1, detached.Count)
	assert.Equal(t, ids[1], detached.Controllers[0].ID)
	assert.Equal(t, app.Detached, detached.Controllers[0].State)

	w = s.do(t, "GET", "/controllers?state=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ids[0], decode[listing](t, w).Controllers[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/controllers?state=sleeping", nil).Code)

	w = s.do(t, "GET", "/controllers?state=terminated", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[listing](t, w).Count)
}
