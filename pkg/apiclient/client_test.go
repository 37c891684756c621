package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/enrollment-console/pkg/errors"
)

type staticCreds string

func (s staticCreds) Credential(context.Context) (string, bool) {
	return string(s), s != ""
}

type recordingObserver struct {
	routes []string
}

func (r *recordingObserver) ObserveUpstreamCall(_, route string, _ int, _ time.Duration) {
	r.routes = append(r.routes, route)
}

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"nombre"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	return New(opts)
}

func TestCallAttachesBearerCredential(t *testing.T) {
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[{"id":1,"nombre":"Ana"}]`))
	}, Options{Credentials: staticCreds("tok-123")})

	var out []item
	require.NoError(t, client.Get(context.Background(), "/estudiantes", &out))
	assert.Equal(t, "Bearer tok-123", auth)
	assert.Equal(t, []item{{ID: 1, Name: "Ana"}}, out)
}

func TestCallPublicOmitsCredential(t *testing.T) {
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"id":7}`))
	}, Options{Credentials: staticCreds("tok-123")})

	var out item
	require.NoError(t, client.Call(context.Background(), Request{Method: http.MethodGet, Endpoint: "/materias/7", Public: true}, &out))
	assert.Empty(t, auth)
	assert.Equal(t, int64(7), out.ID)
}

func TestCallOmitsCredentialWhenUnavailable(t *testing.T) {
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}, Options{Credentials: staticCreds("")})

	require.NoError(t, client.Get(context.Background(), "/estudiantes", nil))
	assert.Empty(t, auth)
}

func TestEmptySuccessReturnsEmptyCollectionForLists(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, Options{})

	var out []item
	require.NoError(t, client.Get(context.Background(), "/materias", &out))
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestListEndpointsMatchWholeSegments(t *testing.T) {
	client := New(Options{ListEndpoints: []string{"/materias", "/inscripciones/estudiante"}})

	assert.True(t, client.isList("/materias"))
	assert.True(t, client.isList("/materias/"))
	assert.True(t, client.isList("/inscripciones/estudiante/4"))
	assert.False(t, client.isList("/materiasX"))
	assert.False(t, client.isList("/inscripciones/estudiantes"))
}

func TestEmptySuccessLeavesSingleValueNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}, Options{})

	var out *item
	require.NoError(t, client.Post(context.Background(), "/inscripciones", map[string]int{"estudianteId": 1}, &out))
	assert.Nil(t, out)
}

func TestEmptyFailureRaisesServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, Options{ResilientEndpoints: []string{"/inscripciones"}})

	var out []item
	err := client.Get(context.Background(), "/estudiantes", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrServer))
	assert.Contains(t, err.Error(), "500")
}

func TestResilientEndpointDegradesToEmpty(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"empty 500": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"structured 500": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"mensaje":"Error al listar inscripciones","detalles":"lazy init"}`))
		},
		"structured 404": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, handler, Options{ResilientEndpoints: []string{"/inscripciones"}})
			var out []item
			require.NoError(t, client.Get(context.Background(), "/inscripciones", &out))
			require.NotNil(t, out)
			assert.Empty(t, out)
		})
	}
}

func TestResilienceDoesNotCoverPerStudentListing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"mensaje":"boom"}`))
	}, Options{ResilientEndpoints: []string{"/inscripciones"}})

	var out []item
	err := client.Get(context.Background(), "/inscripciones/estudiante/4", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRequest))
}

func TestMalformedBodyCarriesRawText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}, Options{})

	var out []item
	err := client.Get(context.Background(), "/estudiantes", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMalformedResponse))
	appErr := appErrors.FromError(err)
	assert.Equal(t, "<html>gateway</html>", appErr.Details.(map[string]interface{})["raw"])
}

func TestRequestErrorMessagePrecedence(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		message string
	}{
		{name: "detail wins", body: `{"detalles":"El estudiante ya está inscripto en esta materia","mensaje":"Error","error":"Bad Request"}`, message: "El estudiante ya está inscripto en esta materia"},
		{name: "message over error", body: `{"message":"subject code taken","error":"Conflict"}`, message: "subject code taken"},
		{name: "error field", body: `{"error":"Conflict"}`, message: "Conflict"},
		{name: "generic", body: `{"status":409}`, message: "Error 409"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(tc.body))
			}, Options{})

			err := client.Post(context.Background(), "/materias", map[string]string{}, nil)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrRequest.Code, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
			assert.Equal(t, http.StatusConflict, appErr.Status)
			failure, ok := appErr.Details.(Failure)
			require.True(t, ok)
			assert.Equal(t, http.StatusConflict, failure.Status)
			assert.NotNil(t, failure.Payload)
		})
	}
}

func TestRequestErrorCarriesStructuredCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"DUPLICATE_ENROLLMENT","mensaje":"dup"}`))
	}, Options{})

	err := client.Post(context.Background(), "/inscripciones", map[string]int{}, nil)
	failure := appErrors.FromError(err).Details.(Failure)
	assert.Equal(t, "DUPLICATE_ENROLLMENT", failure.Code)
}

func TestObserverReceivesBoundedRoute(t *testing.T) {
	obs := &recordingObserver{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, Options{Observer: obs})

	var out []item
	require.NoError(t, client.Get(context.Background(), "/inscripciones/estudiante/42", &out))
	assert.Equal(t, []string{"/inscripciones/estudiante/:id"}, obs.routes)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/materias/:id", routeLabel("/materias/12"))
	assert.Equal(t, "/materias/codigo/MAT-101", routeLabel("/materias/codigo/MAT-101"))
	assert.Equal(t, "/a/:id/:id", routeLabel("/a/1/2"))
	assert.Equal(t, "/inscripciones", routeLabel("inscripciones?x=1"))
}
