package lambdascope

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	scope "github.com/goliatone/go-scope"
)

func tenantFromHeaders(_ context.Context, req events.APIGatewayProxyRequest) (string, error) {
	tenant := req.Headers["x-tenant"]
	if tenant == "" {
		return "", errors.New("missing x-tenant header")
	}
	return tenant, nil
}

func greet(c *scope.Context[string]) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		tenant, err := c.Value()
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		fromCtx, err := c.ValueContext(ctx)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Body:       "hello " + tenant + "/" + fromCtx,
		}, nil
	}
}

func invoke(t *testing.T, c *scope.Context[string], req events.APIGatewayProxyRequest, opts ...Option) (events.APIGatewayProxyResponse, error) {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)

	handler := Wrap(c, tenantFromHeaders, greet(c), opts...)
	raw, err := handler.Invoke(context.Background(), payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}
	var resp events.APIGatewayProxyResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp, nil
}

func TestWrapScopesInvocation(t *testing.T) {
	c := scope.New[string]()

	resp, err := invoke(t, c, events.APIGatewayProxyRequest{
		Headers: map[string]string{"x-tenant": "acme"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "hello acme/acme", resp.Body)
	require.Empty(t, c.LiveScopes())
}

func TestWrapKeepsScopeWhenDestroyDisabled(t *testing.T) {
	c := scope.New[string]()

	_, err := invoke(t, c, events.APIGatewayProxyRequest{
		Headers: map[string]string{"x-tenant": "acme"},
	}, WithDestroy(false))
	require.NoError(t, err)
	require.Len(t, c.LiveScopes(), 1)
}

func TestWrapSeedFailure(t *testing.T) {
	c := scope.New[string]()

	_, err := invoke(t, c, events.APIGatewayProxyRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing x-tenant header")
}

func TestNewOptionsDoesNotShareDefaults(t *testing.T) {
	o := NewOptions(WithDestroy(false))
	require.False(t, o.Destroy)
	require.True(t, NewOptions().Destroy)
}
