package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/service"
	"github.com/gridrush/engine/testsupport/basedata"
)

func testHandler(t *testing.T) *Handler {
	t.Helper()
	cars := map[string]model.CarSetup{
		"car-a": basedata.SampleCar("car-a"),
		"car-b": basedata.SampleCar("car-b"),
	}
	return NewHandler(
		WithService(service.NewRaceService()),
		WithCatalog(basedata.SampleTrack(), cars),
	)
}

func createTestRace(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	body := `{"totalLaps":2,"entries":[
		{"id":"p-a","name":"Player a","car":"car-a"},
		{"id":"p-b","name":"Player b","car":"car-b"}]}`
	resp, err := srv.Client().Post(srv.URL+"/api/races", "application/json",
		bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created createRaceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.RaceID)
	return created.RaceID
}

//nolint:funlen // ok for tests
func TestHandler_RaceLifecycle(t *testing.T) {
	srv := httptest.NewServer(testHandler(t).Mux())
	defer srv.Close()

	raceID := createTestRace(t, srv)

	resp, err := srv.Client().Get(srv.URL + "/api/races/" + raceID + "/phase")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info model.TurnInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, model.WaitingForPlayers, info.Phase)
	assert.Equal(t, 1, info.CurrentLap)
	assert.Len(t, info.PendingIDs, 2)

	for _, pid := range []string{"p-a", "p-b"} {
		action := fmt.Sprintf(`{"participantId":%q,"boostValue":1}`, pid)
		actionResp, postErr := srv.Client().Post(
			srv.URL+"/api/races/"+raceID+"/actions",
			"application/json", bytes.NewBufferString(action))
		require.NoError(t, postErr)
		actionResp.Body.Close()
		assert.Equal(t, http.StatusNoContent, actionResp.StatusCode)
	}

	resp2, err := srv.Client().Get(srv.URL + "/api/races/" + raceID + "/phase")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var after model.TurnInfo
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&after))
	assert.Equal(t, 2, after.CurrentLap, "lap resolved after all submissions")
}

func TestHandler_UnknownCar(t *testing.T) {
	srv := httptest.NewServer(testHandler(t).Mux())
	defer srv.Close()

	body := `{"totalLaps":1,"entries":[{"id":"p-a","name":"A","car":"no-such-car"}]}`
	resp, err := srv.Client().Post(srv.URL+"/api/races", "application/json",
		bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var payload model.ErrorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, model.ErrKindCarValidationFailed, payload.Kind)
}

func TestHandler_UnknownRace(t *testing.T) {
	srv := httptest.NewServer(testHandler(t).Mux())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/races/nope/phase")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_DuplicateSubmissionConflict(t *testing.T) {
	srv := httptest.NewServer(testHandler(t).Mux())
	defer srv.Close()

	raceID := createTestRace(t, srv)

	action := `{"participantId":"p-a","boostValue":1}`
	first, err := srv.Client().Post(srv.URL+"/api/races/"+raceID+"/actions",
		"application/json", bytes.NewBufferString(action))
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusNoContent, first.StatusCode)

	second, err := srv.Client().Post(srv.URL+"/api/races/"+raceID+"/actions",
		"application/json", bytes.NewBufferString(action))
	require.NoError(t, err)
	defer second.Body.Close()
	require.Equal(t, http.StatusConflict, second.StatusCode)
	var payload model.ErrorPayload
	require.NoError(t, json.NewDecoder(second.Body).Decode(&payload))
	assert.Equal(t, model.ErrKindDuplicateSubmission, payload.Kind)
}

func TestHandler_LapHistory(t *testing.T) {
	srv := httptest.NewServer(testHandler(t).Mux())
	defer srv.Close()

	raceID := createTestRace(t, srv)
	for _, pid := range []string{"p-a", "p-b"} {
		action := fmt.Sprintf(`{"participantId":%q,"boostValue":1}`, pid)
		resp, err := srv.Client().Post(srv.URL+"/api/races/"+raceID+"/actions",
			"application/json", bytes.NewBufferString(action))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	resp, err := srv.Client().Get(
		srv.URL + "/api/races/" + raceID + "/participants/p-a/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var hist model.LapHistory
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hist))
	assert.Equal(t, "p-a", hist.ParticipantID)
	require.Len(t, hist.Laps, 1)
	assert.Equal(t, 1, hist.Laps[0].BoostValue)
	require.Len(t, hist.Cycles, 1)
	assert.Equal(t, []int{1}, hist.Cycles[0].CardsUsed)
}

func TestHandler_ListCarsSorted(t *testing.T) {
	srv := httptest.NewServer(testHandler(t).Mux())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/cars")
	require.NoError(t, err)
	defer resp.Body.Close()
	var cars []model.CarSetup
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cars))
	require.Len(t, cars, 2)
	assert.Equal(t, "car-a", cars[0].CarName)
	assert.Equal(t, "car-b", cars[1].CarName)
}
