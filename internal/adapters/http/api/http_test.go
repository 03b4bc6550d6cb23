package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	api "github.com/feisworks/feispoints/internal/adapters/http/api"
	repository "github.com/feisworks/feispoints/internal/adapters/repository"
	"github.com/feisworks/feispoints/internal/domain/advance"
	"github.com/feisworks/feispoints/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps implements api.Dependencies over canned data.
type fakeDeps struct {
	submitted []model.RawScore
	result    model.RoundResult
	recalled  []model.CompetitorID
	notices   []model.AdvancementNotice
	eligible  bool
	message   string
	err       error
}

func (f *fakeDeps) SubmitScore(_ context.Context, score model.RawScore) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, score)
	return nil
}

func (f *fakeDeps) CalculateRound(_ context.Context, _ model.RoundID) (model.RoundResult, error) {
	return f.result, f.err
}

func (f *fakeDeps) RecallForRound(_ context.Context, _ model.RoundID) ([]model.CompetitorID, error) {
	return f.recalled, f.err
}

func (f *fakeDeps) PendingNotices(_ context.Context, _ model.DancerID) ([]model.AdvancementNotice, error) {
	return f.notices, f.err
}

func (f *fakeDeps) AcknowledgeAdvancement(_ context.Context, id model.NoticeID, actorID string) (model.AdvancementNotice, error) {
	if f.err != nil {
		return model.AdvancementNotice{}, f.err
	}
	return model.AdvancementNotice{ID: id, Acknowledged: true, AcknowledgedBy: actorID}, nil
}

func (f *fakeDeps) OverrideAdvancement(_ context.Context, id model.NoticeID, actorID, reason string) (model.AdvancementNotice, error) {
	if f.err != nil {
		return model.AdvancementNotice{}, f.err
	}
	return model.AdvancementNotice{ID: id, Overridden: true, OverriddenBy: actorID, OverrideReason: reason}, nil
}

func (f *fakeDeps) CheckRegistrationEligibility(_ context.Context, _ model.Dancer, _ model.Competition) (bool, string, error) {
	return f.eligible, f.message, f.err
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newTestServer(deps *fakeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}, 200).Register(context.Background(), mux)
	return mux
}

func TestPostScore(t *testing.T) {
	Convey("Given the scores endpoint", t, func() {
		deps := &fakeDeps{}
		mux := newTestServer(deps)

		Convey("When posting a valid score", func() {
			body := `{"judge_id":"judge-a","competitor_id":"101","round_id":"round-1","value":88.5}`
			req := httptest.NewRequest(http.MethodPost, "/scores", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the score is accepted", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.submitted, ShouldHaveLength, 1)
				So(deps.submitted[0].JudgeID, ShouldEqual, model.JudgeID("judge-a"))
				So(deps.submitted[0].Value, ShouldEqual, 88.5)
			})
		})

		Convey("When the judge id is missing", func() {
			body := `{"competitor_id":"101","round_id":"round-1","value":88.5}`
			req := httptest.NewRequest(http.MethodPost, "/scores", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.submitted, ShouldBeEmpty)
		})

		Convey("When the body is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/scores", strings.NewReader("not json"))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When using GET on the endpoint", func() {
			req := httptest.NewRequest(http.MethodGet, "/scores", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestGetResults(t *testing.T) {
	Convey("Given a round with computed results", t, func() {
		deps := &fakeDeps{result: model.RoundResult{
			RoundID: "round-1",
			Results: []model.RankedResult{
				{CompetitorID: "101", TotalPoints: 275, Rank: 1, JudgeScores: []model.JudgeScoreDetail{
					{JudgeID: "judge-a", RawScore: 90, Rank: 1, Points: 100},
				}},
				{CompetitorID: "102", TotalPoints: 250, Rank: 2},
			},
		}}
		mux := newTestServer(deps)

		Convey("When fetching the results", func() {
			req := httptest.NewRequest(http.MethodGet, "/rounds/round-1/results", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)

			var resp struct {
				RoundID string `json:"round_id"`
				Results []struct {
					CompetitorID string  `json:"competitor_id"`
					TotalPoints  float64 `json:"total_points"`
					Rank         int     `json:"rank"`
				} `json:"results"`
			}
			So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.RoundID, ShouldEqual, "round-1")
			So(resp.Results, ShouldHaveLength, 2)
			So(resp.Results[0].TotalPoints, ShouldEqual, 275)
		})

		Convey("When fetching the recall", func() {
			deps.recalled = []model.CompetitorID{"101"}
			req := httptest.NewRequest(http.MethodGet, "/rounds/round-1/recall", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"recalled":["101"]`)
		})

		Convey("When the path is malformed", func() {
			req := httptest.NewRequest(http.MethodGet, "/rounds/round-1", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestAdvancementEndpoints(t *testing.T) {
	Convey("Given a dancer with a pending notice", t, func() {
		deps := &fakeDeps{
			notices: []model.AdvancementNotice{{
				ID:        "n1",
				DancerID:  "dancer-1",
				FromLevel: "novice",
				ToLevel:   "prizewinner",
				DanceType: "reel",
				CreatedAt: time.Now(),
			}},
			eligible: false,
			message:  "pending advancement to prizewinner must be acknowledged or overridden first",
		}
		mux := newTestServer(deps)

		Convey("When listing pending notices", func() {
			req := httptest.NewRequest(http.MethodGet, "/dancers/dancer-1/advancement", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"to_level":"prizewinner"`)
		})

		Convey("When checking eligibility", func() {
			req := httptest.NewRequest(http.MethodGet, "/dancers/dancer-1/eligibility?level=novice&dance=reel", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"eligible":false`)
		})

		Convey("When checking eligibility without a level", func() {
			req := httptest.NewRequest(http.MethodGet, "/dancers/dancer-1/eligibility", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When acknowledging the notice", func() {
			body := `{"actor_id":"teacher-1"}`
			req := httptest.NewRequest(http.MethodPost, "/advancement/n1/acknowledge", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"acknowledged":true`)
		})

		Convey("When overriding without a reason", func() {
			body := `{"actor_id":"admin-1"}`
			req := httptest.NewRequest(http.MethodPost, "/advancement/n1/override", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When overriding with a reason", func() {
			body := `{"actor_id":"admin-1","reason":"teacher request"}`
			req := httptest.NewRequest(http.MethodPost, "/advancement/n1/override", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"override_reason":"teacher request"`)
		})

		Convey("When acknowledging an unknown notice", func() {
			deps.err = repository.ErrNotFound
			body := `{"actor_id":"teacher-1"}`
			req := httptest.NewRequest(http.MethodPost, "/advancement/missing/acknowledge", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When acknowledging a resolved notice", func() {
			deps.err = advance.ErrAlreadyResolved
			body := `{"actor_id":"teacher-1"}`
			req := httptest.NewRequest(http.MethodPost, "/advancement/n1/acknowledge", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})
	})
}
