package ginscope

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	scope "github.com/goliatone/go-scope"
)

type user struct {
	ID string
}

func currentUser(c *scope.Context[user]) string {
	u, err := c.Value()
	if err != nil {
		return "error: " + err.Error()
	}
	return u.ID
}

func newRouter(c *scope.Context[user]) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(c, func(gc *gin.Context) (user, error) {
		id := gc.GetHeader("X-User")
		if id == "" {
			return user{}, errors.New("missing X-User header")
		}
		return user{ID: id}, nil
	}))
	r.GET("/me", func(gc *gin.Context) {
		gc.String(http.StatusOK, currentUser(c))
	})
	r.GET("/async", func(gc *gin.Context) {
		done := make(chan string, 1)
		go func() {
			u, err := Value(c, gc)
			if err != nil {
				done <- err.Error()
				return
			}
			done <- u.ID
		}()
		gc.String(http.StatusOK, <-done)
	})
	return r
}

func TestMiddlewareScopesEachRequest(t *testing.T) {
	c := scope.New[user]()
	r := newRouter(c)

	for _, id := range []string{"ada", "grace"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-User", id)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, id, rec.Body.String())
	}
	require.Empty(t, c.LiveScopes(), "request scopes should be destroyed")
}

func TestMiddlewareCarriesScopeToGoroutines(t *testing.T) {
	c := scope.New[user]()
	r := newRouter(c)

	req := httptest.NewRequest(http.MethodGet, "/async", nil)
	req.Header.Set("X-User", "ada")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ada", rec.Body.String())
}

func TestMiddlewareRejectsExtractorErrors(t *testing.T) {
	c := scope.New[user]()
	r := newRouter(c)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "missing X-User header")
}
