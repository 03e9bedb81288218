package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildOnePersonalizationPerRecipient(t *testing.T) {
	m, err := build(sgmail.NewEmail("Edu", "no-reply@edu.test"), Message{
		To:      []string{"student@edu.test", "guardian@edu.test"},
		Subject: "New grade",
		Body:    "You scored 85/100",
	})
	require.NoError(t, err)
	require.Len(t, m.Personalizations, 2)
	assert.Equal(t, "guardian@edu.test", m.Personalizations[1].To[0].Address)
	assert.Equal(t, "New grade", m.Subject)
	assert.Equal(t, "text/plain", m.Content[0].Type)
}

func TestBuildRequiresRecipients(t *testing.T) {
	_, err := build(sgmail.NewEmail("Edu", "no-reply@edu.test"), Message{Subject: "x"})
	assert.Error(t, err)
}

func TestNewFallsBackToLogMailer(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := New("", "Edu", "no-reply@edu.test", zap.New(core))
	require.IsType(t, &LogMailer{}, m)

	require.NoError(t, m.Send(context.Background(), Message{To: []string{"a@edu.test"}, Subject: "hi"}))
	assert.Equal(t, 1, logs.FilterMessage("mail").Len())

	assert.IsType(t, &SendGridMailer{}, New("SG.key", "Edu", "no-reply@edu.test", nil))
}

func sendGridStub(t *testing.T, delay time.Duration) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		var payload struct {
			Personalizations []struct {
				To []struct {
					Email string `json:"email"`
				} `json:"to"`
			} `json:"personalizations"`
		}
		if r.URL.Path != "/v3/mail/send" || r.Header.Get("Authorization") != "Bearer SG.key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		for _, p := range payload.Personalizations {
			for _, to := range p.To {
				seen = append(seen, to.Email)
			}
		}
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func TestSendGridMailerConcurrentSendsKeepTheirOwnBody(t *testing.T) {
	srv, seen := sendGridStub(t, 0)
	m := NewSendGridMailer("SG.key", "Edu", "no-reply@edu.test", WithHost(srv.URL), WithTimeout(5*time.Second))

	const senders = 50
	want := make([]string, 0, senders)
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		to := fmt.Sprintf("student%02d@edu.test", i)
		want = append(want, to)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Send(context.Background(), Message{To: []string{to}, Subject: "New grade", Body: "85/100"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.ElementsMatch(t, want, seen())
}

func TestSendGridMailerTimesOut(t *testing.T) {
	srv, _ := sendGridStub(t, 200*time.Millisecond)
	m := NewSendGridMailer("SG.key", "Edu", "no-reply@edu.test", WithHost(srv.URL), WithTimeout(20*time.Millisecond))

	err := m.Send(context.Background(), Message{To: []string{"a@edu.test"}, Subject: "hi"})
	assert.Error(t, err)
}

func TestSendGridMailerReportsRejectedStatus(t *testing.T) {
	srv, _ := sendGridStub(t, 0)
	m := NewSendGridMailer("SG.wrong", "Edu", "no-reply@edu.test", WithHost(srv.URL))

	err := m.Send(context.Background(), Message{To: []string{"a@edu.test"}, Subject: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
