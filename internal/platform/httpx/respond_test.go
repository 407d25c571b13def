package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("customer 7: %w", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("code taken: %w", ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("bad date: %w", ErrValidation), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	}
}

func TestServerErrorHidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	ServerError(rr, nil, "Failed to generate trial balance", errors.New("relation does not exist"))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Failed to generate trial balance", body.Detail)
	assert.NotContains(t, rr.Body.String(), "relation")
}

type createThing struct {
	Name  string `json:"name" validate:"required,max=5"`
	Count int    `json:"count" validate:"gte=0"`
}

func TestDecodeJSONValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"toolong","count":-1}`))
	var dst createThing
	err := DecodeJSON(httptest.NewRecorder(), req, &dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "createThing.Name")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok","extra":1}`))
	err = DecodeJSON(httptest.NewRecorder(), req, &dst)
	assert.ErrorIs(t, err, ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok","count":2}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, 2, dst.Count)
}
