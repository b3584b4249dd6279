package services_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/services"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/validation"
)

func daysFromNow(days int) time.Time {
	return time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).Truncate(time.Second)
}

func conferenceBody(name, acronym string, start, end time.Time) map[string]interface{} {
	return map[string]interface{}{
		"name":      name,
		"acronym":   acronym,
		"location":  "Ho Chi Minh City",
		"startDate": start,
		"endDate":   end,
	}
}

func createConference(t *testing.T, chair testClient, body map[string]interface{}) services.ConferenceInfo {
	var res services.CreateConferenceResult
	status, err := chair.Post("/api/conferences").Json(body).DoResult(&res)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status, res.Message)
	require.True(t, res.Success)
	require.NotNil(t, res.Conference)
	return *res.Conference
}

func hasFieldCode(errs []validation.FieldError, field, code string) bool {
	for _, fe := range errs {
		if fe.Field == field && fe.Code == code {
			return true
		}
	}
	return false
}

func TestCreateConferenceDefaults(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)

	conf := createConference(t, chair, conferenceBody(
		"International Conference on Software Engineering 2026", "ICSE2026", daysFromNow(60), daysFromNow(63),
	))

	assert.Equal(t, schema.ConferenceDraft, conf.Status)
	assert.Equal(t, schema.VisibilityPrivate, conf.Visibility)
	assert.Equal(t, schema.ReviewModeDoubleBlind, conf.ReviewMode)
	assert.Equal(t, chair.userId, conf.CreatedBy)

	var details services.ConferenceDetails
	require.NoError(t, chair.Get(fmt.Sprintf("/api/conferences/%v", conf.Id)).Do(&details))
	assert.Equal(t, "ICSE2026", details.Acronym)
	require.NotNil(t, details.Creator)
	assert.Equal(t, "chair@mail.com", details.Creator.Email)
	assert.Empty(t, details.Tracks)
}

func TestCreateConferenceValidation(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)

	t.Run("EndBeforeStart", func(t *testing.T) {
		var res services.CreateConferenceResult
		status, err := chair.Post("/api/conferences").Json(conferenceBody("Conf A", "CA", daysFromNow(10), daysFromNow(5))).DoResult(&res)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.False(t, res.Success)
		assert.True(t, hasFieldCode(res.Errors, "endDate", validation.CodeDateOrder))
	})

	t.Run("PastStart", func(t *testing.T) {
		var res services.CreateConferenceResult
		status, err := chair.Post("/api/conferences").Json(conferenceBody("Conf B", "CB", daysFromNow(-3), daysFromNow(2))).DoResult(&res)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.True(t, hasFieldCode(res.Errors, "startDate", validation.CodePastDate))
	})

	t.Run("BadAcronym", func(t *testing.T) {
		var res services.CreateConferenceResult
		status, err := chair.Post("/api/conferences").Json(conferenceBody("Conf C", "C C!", daysFromNow(10), daysFromNow(12))).DoResult(&res)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.True(t, hasFieldCode(res.Errors, "acronym", "acronym"))
	})

	t.Run("DeadlineAfterStart", func(t *testing.T) {
		body := conferenceBody("Conf D", "CD", daysFromNow(10), daysFromNow(12))
		body["submissionDeadline"] = daysFromNow(11)
		var res services.CreateConferenceResult
		status, err := chair.Post("/api/conferences").Json(body).DoResult(&res)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.True(t, hasFieldCode(res.Errors, "submissionDeadline", validation.CodeDeadlineAfterStart))
	})

	t.Run("DuplicateName", func(t *testing.T) {
		createConference(t, chair, conferenceBody("Conf E", "CE", daysFromNow(10), daysFromNow(12)))

		var res services.CreateConferenceResult
		status, err := chair.Post("/api/conferences").Json(conferenceBody("conf e", "CE2", daysFromNow(10), daysFromNow(12))).DoResult(&res)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, status)
		assert.False(t, res.Success)
		assert.True(t, hasFieldCode(res.Errors, "name", validation.CodeDuplicate))
		assert.Contains(t, res.Message, "already exists")
	})
}

func TestConferenceRoles(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)
	other := env.newUser(t, "other", schema.RoleConferenceChair)
	author := env.newUser(t, "author")

	err := author.Post("/api/conferences").Json(conferenceBody("Conf", "CF", daysFromNow(10), daysFromNow(12))).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	conf := createConference(t, chair, conferenceBody("Conf", "CF", daysFromNow(10), daysFromNow(12)))

	err = other.Put(fmt.Sprintf("/api/conferences/%v", conf.Id)).Json(map[string]string{"location": "Hanoi"}).Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	admin := env.adminClient(t)
	var updated services.ConferenceInfo
	require.NoError(t, admin.Put(fmt.Sprintf("/api/conferences/%v", conf.Id)).Json(map[string]string{"location": "Hanoi"}).Do(&updated))
	assert.Equal(t, "Hanoi", updated.Location)

	anonymous := env.newClient()
	err = anonymous.Post("/api/conferences").Json(conferenceBody("Conf 2", "CF2", daysFromNow(10), daysFromNow(12))).Do(nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}

func TestUpdateConference(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)
	conf := createConference(t, chair, conferenceBody("Conf", "CF", daysFromNow(10), daysFromNow(12)))
	endpoint := fmt.Sprintf("/api/conferences/%v", conf.Id)

	var updated services.ConferenceInfo
	require.NoError(t, chair.Put(endpoint).Json(map[string]interface{}{"description": "A conference", "visibility": "PUBLIC"}).Do(&updated))
	assert.Equal(t, "A conference", updated.Description)
	assert.Equal(t, schema.VisibilityPublic, updated.Visibility)
	assert.Equal(t, "Ho Chi Minh City", updated.Location)

	require.NoError(t, chair.Put(endpoint).Json(map[string]interface{}{"location": nil}).Do(&updated))
	assert.Empty(t, updated.Location)
	assert.Equal(t, "A conference", updated.Description)

	err := chair.Put(endpoint).Json(map[string]interface{}{"name": nil}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	err = chair.Put(endpoint).Json(map[string]interface{}{"endDate": daysFromNow(5)}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Contains(t, err.Error(), validation.CodeDateOrder)

	var details services.ConferenceDetails
	require.NoError(t, chair.Get(endpoint).Do(&details))
	assert.Equal(t, "A conference", details.Description)
}

func TestListConferencesVisibility(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)

	draft := createConference(t, chair, conferenceBody("Draft Conf", "DC", daysFromNow(10), daysFromNow(12)))
	public := createConference(t, chair, conferenceBody("Public Conf", "PC", daysFromNow(20), daysFromNow(22)))

	require.NoError(t, chair.Put(fmt.Sprintf("/api/conferences/%v", public.Id)).Json(map[string]string{"visibility": "PUBLIC"}).Do(nil))
	require.NoError(t, chair.Post(fmt.Sprintf("/api/conferences/%v/status", public.Id)).Json(map[string]string{"status": "PUBLISHED"}).Do(nil))

	var page struct {
		Items []services.ConferenceInfo `json:"items"`
		Total int64                     `json:"total"`
	}

	anonymous := env.newClient()
	require.NoError(t, anonymous.Get("/api/conferences").Do(&page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, public.Id, page.Items[0].Id)

	require.NoError(t, chair.Get("/api/conferences").Do(&page))
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, draft.Id, page.Items[0].Id)

	require.NoError(t, chair.Get("/api/conferences?status=PUBLISHED").Do(&page))
	assert.Equal(t, int64(1), page.Total)

	err := chair.Get("/api/conferences?status=UNKNOWN").Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
}

func TestGetUnlistedConference(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)
	author := env.newUser(t, "author")
	conf := createConference(t, chair, conferenceBody("Draft Conf", "DC", daysFromNow(10), daysFromNow(12)))
	endpoint := fmt.Sprintf("/api/conferences/%v", conf.Id)

	anonymous := env.newClient()
	err := anonymous.Get(endpoint).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	var details services.ConferenceDetails
	require.NoError(t, author.Get(endpoint).Do(&details))
	assert.Equal(t, conf.Id, details.Id)

	// Published but private is still unlisted.
	require.NoError(t, chair.Post(endpoint+"/status").Json(map[string]string{"status": "PUBLISHED"}).Do(nil))
	err = anonymous.Get(endpoint).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	require.NoError(t, chair.Put(endpoint).Json(map[string]string{"visibility": "PUBLIC"}).Do(nil))
	require.NoError(t, anonymous.Get(endpoint).Do(&details))
	assert.Equal(t, schema.VisibilityPublic, details.Visibility)
}

func TestConferenceStatusTransitions(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)
	conf := createConference(t, chair, conferenceBody("Conf", "CF", daysFromNow(10), daysFromNow(12)))
	endpoint := fmt.Sprintf("/api/conferences/%v/status", conf.Id)

	err := chair.Post(endpoint).Json(map[string]string{"status": "ACTIVE"}).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	var updated services.ConferenceInfo
	require.NoError(t, chair.Post(endpoint).Json(map[string]string{"status": "PUBLISHED"}).Do(&updated))
	assert.Equal(t, schema.ConferencePublished, updated.Status)

	require.NoError(t, chair.Post(endpoint).Json(map[string]string{"status": "CANCELLED"}).Do(&updated))

	err = chair.Post(endpoint).Json(map[string]string{"status": "ACTIVE"}).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestTracksAndDeadlines(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)
	conf := createConference(t, chair, conferenceBody("Conf", "CF", daysFromNow(30), daysFromNow(32)))

	tracks := fmt.Sprintf("/api/conferences/%v/tracks", conf.Id)
	var track services.TrackInfo
	require.NoError(t, chair.Post(tracks).Json(map[string]string{"name": "Research"}).Do(&track))
	assert.NotEqual(t, uuid.Nil, track.Id)

	err := chair.Post(tracks).Json(map[string]string{"name": "Research"}).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	deadlines := fmt.Sprintf("/api/conferences/%v/deadlines", conf.Id)
	err = chair.Post(deadlines).Json(map[string]interface{}{"type": "SUBMISSION", "date": daysFromNow(31)}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	require.NoError(t, chair.Post(deadlines).Json(map[string]interface{}{"type": "SUBMISSION", "date": daysFromNow(20)}).Do(nil))

	err = chair.Post(deadlines).Json(map[string]interface{}{"type": "SUBMISSION", "date": daysFromNow(21)}).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	err = chair.Post(deadlines).Json(map[string]interface{}{"type": "ABSTRACT", "date": daysFromNow(21)}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	var details services.ConferenceDetails
	require.NoError(t, chair.Get(fmt.Sprintf("/api/conferences/%v", conf.Id)).Do(&details))
	require.Len(t, details.Tracks, 1)
	require.Len(t, details.Deadlines, 1)
	assert.Equal(t, schema.DeadlineSubmission, details.Deadlines[0].Type)
}

func TestCallForPapers(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)
	conf := createConference(t, chair, conferenceBody("Conf", "CF", daysFromNow(30), daysFromNow(32)))
	endpoint := fmt.Sprintf("/api/conferences/%v/call-for-papers", conf.Id)
	anonymous := env.newClient()

	err := chair.Put(endpoint).Json(map[string]interface{}{"title": "CFP", "topics": []string{"AI", "ai"}}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Contains(t, err.Error(), validation.CodeUniqueItems)

	err = chair.Put(endpoint).Json(map[string]interface{}{"title": "CFP", "topics": []string{"a", "b", "c", "d", "e", "f"}}).Do(nil)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Contains(t, err.Error(), validation.CodeTooMany)

	var cfp services.CallForPapersInfo
	require.NoError(t, chair.Put(endpoint).Json(map[string]interface{}{"title": "CFP", "topics": []string{"AI", "Systems"}}).Do(&cfp))
	assert.False(t, cfp.IsPublished)
	assert.Nil(t, cfp.PublishedAt)

	err = anonymous.Get(endpoint).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	require.NoError(t, chair.Get(endpoint).Do(&cfp))

	require.NoError(t, chair.Put(endpoint).Json(map[string]interface{}{"title": "CFP", "isPublished": true, "topics": []string{"AI"}}).Do(&cfp))
	assert.NotNil(t, cfp.PublishedAt)

	require.NoError(t, anonymous.Get(endpoint).Do(&cfp))
	assert.Equal(t, []string{"AI"}, cfp.Topics)
	assert.True(t, cfp.IsPublished)
}

func TestDeleteConference(t *testing.T) {
	env := setupTestEnv(t)
	chair := env.newUser(t, "chair", schema.RoleConferenceChair)
	conf := createConference(t, chair, conferenceBody("Conf", "CF", daysFromNow(30), daysFromNow(32)))
	endpoint := fmt.Sprintf("/api/conferences/%v", conf.Id)

	require.NoError(t, chair.Post(endpoint+"/tracks").Json(map[string]string{"name": "Research"}).Do(nil))
	require.NoError(t, chair.Get(endpoint).Do(nil))

	require.NoError(t, chair.Delete(endpoint).Do(nil))

	err := chair.Get(endpoint).Do(nil)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	var tracks int64
	require.NoError(t, env.db.Model(&schema.Track{}).Where("conference_id = ?", conf.Id).Count(&tracks).Error)
	assert.Zero(t, tracks)
}
