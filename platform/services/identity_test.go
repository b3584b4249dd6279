package services_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/schema"
	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/platform/services"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	c := env.newClient()
	userId, err := c.signup("alice", "alice@mail.com", "alice_password")
	require.NoError(t, err)

	_, err = c.signup("alice", "other@mail.com", "alice_password")
	assert.Equal(t, http.StatusConflict, statusOf(err))
	_, err = c.signup("other", "alice@mail.com", "alice_password")
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, err = c.signup("bob", "bob@mail.com", "short")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))

	err = c.login("alice@mail.com", "wrong_password")
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	err = c.login("nobody@mail.com", "alice_password")
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	err = c.Get("/api/users/me").Do(nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))

	require.NoError(t, c.login("alice@mail.com", "alice_password"))
	assert.Equal(t, userId, c.userId)

	var me services.UserInfo
	require.NoError(t, c.Get("/api/users/me").Do(&me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, []string{schema.RoleAuthor}, me.Roles)

	c.authToken = "not-a-jwt"
	err = c.Get("/api/users/me").Do(nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}

func TestManageRoles(t *testing.T) {
	env := setupTestEnv(t)
	admin := env.adminClient(t)
	user := env.newUser(t, "alice")

	err := user.addRole(user.userId, schema.RoleConferenceChair)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	require.NoError(t, admin.addRole(user.userId, schema.RoleConferenceChair))
	require.NoError(t, admin.addRole(user.userId, schema.RoleConferenceChair))

	err = admin.addRole(user.userId, "EMPEROR")
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	err = admin.addRole(uuid.New(), schema.RoleReviewer)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	var me services.UserInfo
	require.NoError(t, user.Get("/api/users/me").Do(&me))
	assert.Equal(t, []string{schema.RoleAuthor, schema.RoleConferenceChair}, me.Roles)

	require.NoError(t, admin.Delete(fmt.Sprintf("/api/users/%v/roles/%v", user.userId, schema.RoleConferenceChair)).Do(nil))
	require.NoError(t, user.Get("/api/users/me").Do(&me))
	assert.Equal(t, []string{schema.RoleAuthor}, me.Roles)

	err = admin.Delete(fmt.Sprintf("/api/users/%v/roles/%v", admin.userId, schema.RoleSystemAdmin)).Do(nil)
	assert.Equal(t, http.StatusConflict, statusOf(err))

	var users struct {
		Items []services.UserInfo `json:"items"`
		Total int64               `json:"total"`
	}
	require.NoError(t, admin.Get("/api/users/list").Do(&users))
	assert.Equal(t, int64(2), users.Total)

	err = user.Get("/api/users/list").Do(nil)
	assert.Equal(t, http.StatusForbidden, statusOf(err))
}

func TestBatchUsers(t *testing.T) {
	env := setupTestEnv(t)
	alice := env.newUser(t, "alice")
	bob := env.newUser(t, "bob")

	var users []struct {
		Id       uuid.UUID `json:"id"`
		Username string    `json:"username"`
		Roles    []string  `json:"roles"`
	}
	require.NoError(t, alice.Post("/api/users/batch").Json(map[string]interface{}{
		"ids": []uuid.UUID{alice.userId, bob.userId, uuid.New()},
	}).Do(&users))
	require.Len(t, users, 2)
	for _, u := range users {
		assert.Nil(t, u.Roles)
	}

	require.NoError(t, alice.Post("/api/users/batch").Json(map[string]interface{}{"ids": []uuid.UUID{}}).Do(&users))
	assert.Empty(t, users)

	anonymous := env.newClient()
	err := anonymous.Post("/api/users/batch").Json(map[string]interface{}{"ids": []uuid.UUID{bob.userId}}).Do(nil)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
}
