package services_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{api: api, method: method, endpoint: endpoint}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

type responseError struct {
	method   string
	endpoint string
	status   int
	body     string
}

func (e *responseError) Error() string {
	return fmt.Sprintf("%v request to endpoint %v returned status %d, content '%v'", e.method, e.endpoint, e.status, e.body)
}

func (r *httpTestRequest) send() (*httptest.ResponseRecorder, error) {
	if r.json != nil {
		body := new(bytes.Buffer)
		if err := json.NewEncoder(body).Encode(r.json); err != nil {
			return nil, fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	for k, v := range r.headers {
		req.Header.Add(k, v)
	}
	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()
	r.api.ServeHTTP(w, req)
	return w, nil
}

// Do parses a 200 response body into result, passing nil indicates that no
// result is returned. Other statuses are returned as a *responseError.
func (r *httpTestRequest) Do(result interface{}) error {
	w, err := r.send()
	if err != nil {
		return err
	}

	if w.Code != http.StatusOK {
		return &responseError{method: r.method, endpoint: r.endpoint, status: w.Code, body: w.Body.String()}
	}

	if result != nil {
		if err := json.NewDecoder(w.Body).Decode(result); err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}
	return nil
}

// DoResult parses a json body whatever the status, for endpoints that report
// failures as typed results.
func (r *httpTestRequest) DoResult(result interface{}) (int, error) {
	w, err := r.send()
	if err != nil {
		return 0, err
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		return w.Code, &responseError{method: r.method, endpoint: r.endpoint, status: w.Code, body: w.Body.String()}
	}
	if err := json.NewDecoder(w.Body).Decode(result); err != nil {
		return w.Code, fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
	}
	return w.Code, nil
}

type testClient struct {
	api       http.Handler
	authToken string
	userId    uuid.UUID
}

func (c *testClient) request(method, endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, method, endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *testClient) Get(endpoint string) *httpTestRequest {
	return c.request("GET", endpoint)
}

func (c *testClient) Post(endpoint string) *httpTestRequest {
	return c.request("POST", endpoint)
}

func (c *testClient) Put(endpoint string) *httpTestRequest {
	return c.request("PUT", endpoint)
}

func (c *testClient) Delete(endpoint string) *httpTestRequest {
	return c.request("DELETE", endpoint)
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *testClient) signup(username, email, password string) (uuid.UUID, error) {
	body := map[string]string{"username": username, "email": email, "password": password, "fullName": username}

	var res struct {
		UserId uuid.UUID `json:"userId"`
	}
	err := c.Post("/api/users/signup").Json(body).Do(&res)
	return res.UserId, err
}

func (c *testClient) login(email, password string) error {
	var res struct {
		UserId      uuid.UUID `json:"userId"`
		AccessToken string    `json:"accessToken"`
	}
	if err := newHttpTestRequest(c.api, "GET", "/api/users/login").Login(email, password).Do(&res); err != nil {
		return err
	}
	c.authToken = res.AccessToken
	c.userId = res.UserId
	return nil
}

func (c *testClient) addRole(userId uuid.UUID, role string) error {
	return c.Post(fmt.Sprintf("/api/users/%v/roles", userId)).Json(map[string]string{"role": role}).Do(nil)
}
