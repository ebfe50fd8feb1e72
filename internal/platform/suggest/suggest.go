// Package suggest obtains candidate medicines for a set of symptoms and
// health conditions. Several sources are supported: a remote suggestion
// service, an OpenAI-compatible chat model queried directly, and a canned
// stub for local development.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rxdesk/rxdesk/internal/domain/selection"
)

var (
	ErrEmptyRequest   = errors.New("at least one symptom is required")
	ErrUnsuccessful   = errors.New("suggestion source reported failure")
	ErrMalformedReply = errors.New("malformed suggestion reply")
)

// Request is what the suggestion boundary receives.
type Request struct {
	Symptoms         []string `json:"symptoms"`
	HealthConditions []string `json:"health_conditions"`
}

// Validate rejects requests without any non-blank symptom.
func (r Request) Validate() error {
	for _, s := range r.Symptoms {
		if strings.TrimSpace(s) != "" {
			return nil
		}
	}
	return ErrEmptyRequest
}

// Response is the suggestion boundary's reply.
type Response struct {
	Success   bool                  `json:"success"`
	Medicines []selection.Candidate `json:"medicines"`
}

// Client fetches candidates. Implementations must honour ctx cancellation.
type Client interface {
	Suggest(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

func (f ClientFunc) Suggest(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// parseMedicines reads a JSON array of medicine objects. Entries without a
// name are skipped; "understood_condition" and other extra keys are ignored.
func parseMedicines(arr gjson.Result) ([]selection.Candidate, error) {
	if !arr.IsArray() {
		return nil, fmt.Errorf("%w: medicines is not an array", ErrMalformedReply)
	}
	out := []selection.Candidate{}
	arr.ForEach(func(_, m gjson.Result) bool {
		name := strings.TrimSpace(m.Get("name").String())
		if name == "" {
			return true
		}
		out = append(out, selection.Candidate{
			Name:              name,
			Description:       m.Get("description").String(),
			RecommendedDosage: m.Get("recommended_dosage").String(),
			Timing:            m.Get("timing").String(),
			Precautions:       m.Get("precautions").String(),
		})
		return true
	})
	return out, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
