package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
)

func setupDb(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDb, err := db.DB()
	require.NoError(t, err)
	sqlDb.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(schema.AllModels()...))
	return db
}

func newConference(name string) schema.Conference {
	start := time.Now().UTC().Add(30 * 24 * time.Hour)
	return schema.Conference{
		Id:         uuid.New(),
		Name:       name,
		Acronym:    name,
		StartDate:  start,
		EndDate:    start.Add(48 * time.Hour),
		Status:     schema.ConferenceDraft,
		Visibility: schema.VisibilityPrivate,
		ReviewMode: schema.ReviewModeDoubleBlind,
		CreatedBy:  uuid.New(),
	}
}

func TestCrud(t *testing.T) {
	repos := NewRepos(setupDb(t))

	conf := newConference("ICSE26")
	require.NoError(t, repos.Conferences.Create(&conf))

	got, err := repos.Conferences.Get(conf.Id)
	require.NoError(t, err)
	assert.Equal(t, "ICSE26", got.Name)

	require.NoError(t, repos.Conferences.Updates(conf.Id, map[string]interface{}{"location": "Rio"}))
	got, err = repos.Conferences.Get(conf.Id)
	require.NoError(t, err)
	assert.Equal(t, "Rio", got.Location)

	require.NoError(t, repos.Conferences.Delete(conf.Id))

	_, err = repos.Conferences.Get(conf.Id)
	assert.ErrorIs(t, err, schema.ErrConferenceNotFound)

	err = repos.Conferences.Updates(conf.Id, map[string]interface{}{"location": "Lima"})
	assert.ErrorIs(t, err, schema.ErrConferenceNotFound)

	assert.ErrorIs(t, repos.Conferences.Delete(conf.Id), schema.ErrConferenceNotFound)
}

func TestDuplicateCreate(t *testing.T) {
	repos := NewRepos(setupDb(t))

	first := newConference("FSE")
	require.NoError(t, repos.Conferences.Create(&first))

	second := newConference("FSE")
	err := repos.Conferences.Create(&second)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestListPagination(t *testing.T) {
	repos := NewRepos(setupDb(t))

	for _, name := range []string{"A1", "A2", "A3", "B1", "B2"} {
		conf := newConference(name)
		require.NoError(t, repos.Conferences.Create(&conf))
	}

	items, total, err := repos.Conferences.List(utils.Page{Page: 2, PageSize: 2}, OrderBy("name"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, items, 2)
	assert.Equal(t, "A3", items[0].Name)
	assert.Equal(t, "B1", items[1].Name)

	items, total, err = repos.Conferences.List(utils.Page{Page: 1, PageSize: 10}, Where("name LIKE ?", "B%"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	exists, err := repos.Conferences.Exists(Where("acronym = ?", "A2"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUnitOfWorkRollback(t *testing.T) {
	db := setupDb(t)
	uow := NewUnitOfWork(db)

	conf := newConference("ROLLBACK")
	errAbort := errors.New("abort")

	err := uow.Do(func(repos *Repos) error {
		if err := repos.Conferences.Create(&conf); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	_, err = uow.Read().Conferences.Get(conf.Id)
	assert.ErrorIs(t, err, schema.ErrConferenceNotFound)

	err = uow.Do(func(repos *Repos) error {
		return repos.Conferences.Create(&conf)
	})
	require.NoError(t, err)

	_, err = uow.Read().Conferences.Get(conf.Id)
	assert.NoError(t, err)
}

func TestCascadeDelete(t *testing.T) {
	repos := NewRepos(setupDb(t))

	conf := newConference("CASCADE")
	conf.Tracks = []schema.Track{{Id: uuid.New(), Name: "Main"}}
	require.NoError(t, repos.Conferences.Create(&conf))

	exists, err := repos.Tracks.Exists(Where("conference_id = ?", conf.Id))
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repos.Conferences.Delete(conf.Id))

	exists, err = repos.Tracks.Exists(Where("conference_id = ?", conf.Id))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeadlineNotFound(t *testing.T) {
	repos := NewRepos(setupDb(t))

	conf := newConference("ISSTA")
	require.NoError(t, repos.Conferences.Create(&conf))

	deadline := schema.Deadline{
		Id:           uuid.New(),
		ConferenceId: conf.Id,
		Type:         schema.DeadlineSubmission,
		Date:         conf.StartDate.Add(-7 * 24 * time.Hour),
	}
	require.NoError(t, repos.Deadlines.Create(&deadline))
	require.NoError(t, repos.Deadlines.Delete(deadline.Id))

	_, err := repos.Deadlines.Get(deadline.Id)
	assert.ErrorIs(t, err, schema.ErrDeadlineNotFound)
	assert.NotErrorIs(t, err, schema.ErrConferenceNotFound)

	assert.ErrorIs(t, repos.Deadlines.Delete(deadline.Id), schema.ErrDeadlineNotFound)
}
