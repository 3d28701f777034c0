package kalendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tazhate/kalendarbot/internal/domain"
)

// Client talks to the kalendar REST API on behalf of one cookie session.
//
// Every exported method swallows transport and HTTP errors and returns a
// safe default (false, nil or an empty slice); callers only ever see the
// outcome, never the cause.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client whose requests all carry cookies from jar.
// No timeout is set: a call lives exactly as long as its context.
func NewClient(baseURL string, jar http.CookieJar) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar: jar,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// credentials is the body of register and login.
type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// doRequest performs an HTTP request with the session cookie attached by the jar
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Body)
}

// Register creates an account. True means the service answered 2xx.
func (c *Client) Register(ctx context.Context, username, password string) bool {
	if _, err := c.doRequest(ctx, http.MethodPost, "/users/register", credentials{username, password}); err != nil {
		log.Printf("kalendar: register %q: %v", username, err)
		return false
	}
	return true
}

// Login starts a session; the service sets the cookie into the jar.
func (c *Client) Login(ctx context.Context, username, password string) *domain.User {
	body, err := c.doRequest(ctx, http.MethodPost, "/users/login", credentials{username, password})
	if err != nil {
		log.Printf("kalendar: login %q: %v", username, err)
		return nil
	}
	return decodeUser(body)
}

// Logout tells the service to drop the session. Errors are ignored.
func (c *Client) Logout(ctx context.Context) {
	if _, err := c.doRequest(ctx, http.MethodPost, "/users/logout", nil); err != nil {
		log.Printf("kalendar: logout: %v", err)
	}
}

// CurrentUser asks who owns the session cookie. Nil is the normal "not logged in" answer.
func (c *Client) CurrentUser(ctx context.Context) *domain.User {
	u, _ := c.Me(ctx)
	return u
}

// Me is CurrentUser that keeps the cause. A nil user with a nil error means
// the service has no session for the cookie. An error means the service
// could not be asked: the transport failed or it answered 5xx.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/users/me", nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code < http.StatusInternalServerError {
			return nil, nil
		}
		return nil, err
	}
	return decodeUser(body), nil
}

func (c *Client) Users(ctx context.Context) []domain.User {
	body, err := c.doRequest(ctx, http.MethodGet, "/users", nil)
	if err != nil {
		log.Printf("kalendar: list users: %v", err)
		return []domain.User{}
	}

	var users []domain.User
	if err := json.Unmarshal(body, &users); err != nil {
		log.Printf("kalendar: unmarshal users: %v", err)
		return []domain.User{}
	}
	if users == nil {
		users = []domain.User{}
	}
	return users
}

// RemindersOn returns every reminder the service has for the date (YYYY-MM-DD).
func (c *Client) RemindersOn(ctx context.Context, date string) []domain.Reminder {
	body, err := c.doRequest(ctx, http.MethodGet, "/reminders?date="+url.QueryEscape(date), nil)
	if err != nil {
		log.Printf("kalendar: reminders for %s: %v", date, err)
		return []domain.Reminder{}
	}
	return decodeReminders(body)
}

// AllReminders returns the session user's reminders ordered by date.
func (c *Client) AllReminders(ctx context.Context) []domain.Reminder {
	body, err := c.doRequest(ctx, http.MethodGet, "/reminders/all", nil)
	if err != nil {
		log.Printf("kalendar: all reminders: %v", err)
		return []domain.Reminder{}
	}
	return decodeReminders(body)
}

func (c *Client) CreateReminder(ctx context.Context, in domain.ReminderInput) bool {
	if _, err := c.doRequest(ctx, http.MethodPost, "/reminders", in); err != nil {
		log.Printf("kalendar: create reminder: %v", err)
		return false
	}
	return true
}

func (c *Client) UpdateReminder(ctx context.Context, id int64, in domain.ReminderInput) bool {
	if _, err := c.doRequest(ctx, http.MethodPut, "/reminders/"+strconv.FormatInt(id, 10), in); err != nil {
		log.Printf("kalendar: update reminder %d: %v", id, err)
		return false
	}
	return true
}

// DeleteReminder removes the reminder for everyone when the session user
// owns it; for anyone else the service only drops them from participants.
func (c *Client) DeleteReminder(ctx context.Context, id int64) bool {
	if _, err := c.doRequest(ctx, http.MethodDelete, "/reminders/"+strconv.FormatInt(id, 10), nil); err != nil {
		log.Printf("kalendar: delete reminder %d: %v", id, err)
		return false
	}
	return true
}

func decodeUser(body []byte) *domain.User {
	var u domain.User
	if err := json.Unmarshal(body, &u); err != nil {
		log.Printf("kalendar: unmarshal user: %v", err)
		return nil
	}
	if u.Username == "" {
		return nil
	}
	return &u
}

func decodeReminders(body []byte) []domain.Reminder {
	var reminders []domain.Reminder
	if err := json.Unmarshal(body, &reminders); err != nil {
		log.Printf("kalendar: unmarshal reminders: %v", err)
		return []domain.Reminder{}
	}
	if reminders == nil {
		reminders = []domain.Reminder{}
	}
	return reminders
}
