package anshar

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/entur/ukur/internal/ansharclient"
	"github.com/entur/ukur/internal/model"
	"github.com/entur/ukur/internal/siri"
	"github.com/entur/ukur/internal/store"
)

func newTestRequestor(id string) *RequestorID {
	r, err := Resolve(context.Background(), store.NewMemoryMap(), id)
	if err != nil {
		panic(err)
	}
	return r
}

func TestRenewer_Renew_CallbackURLCarriesKindSuffix(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := ansharclient.New(1000, 1000, time.Second)
	requestor := newTestRequestor("Ukur-test")
	renewer := NewRenewer(client, srv.URL, "https://ukur.example/siriMessages/Ukur-test", requestor)

	if err := renewer.Renew(context.Background(), siri.KindET); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if !strings.Contains(gotBody, "https://ukur.example/siriMessages/Ukur-test/et") {
		t.Errorf("expected callback url with /et suffix in body, got %q", gotBody)
	}

	if err := renewer.Renew(context.Background(), siri.KindSX); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if !strings.Contains(gotBody, "https://ukur.example/siriMessages/Ukur-test/sx") {
		t.Errorf("expected callback url with /sx suffix in body, got %q", gotBody)
	}
}

func TestRenewer_Renew_UpstreamRejectionIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := ansharclient.New(1000, 1000, time.Second)
	requestor := newTestRequestor("Ukur-test")
	renewer := NewRenewer(client, srv.URL, "https://ukur.example/siriMessages/Ukur-test", requestor)

	if err := renewer.Renew(context.Background(), siri.KindET); err == nil {
		t.Error("expected an error when Anshar rejects the subscription request")
	}
}

func TestLivenessChecker_Check_RenewsStaleFeed(t *testing.T) {
	var renewCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&renewCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := ansharclient.New(1000, 1000, time.Second)
	requestor := newTestRequestor("Ukur-test")
	renewer := NewRenewer(client, srv.URL, "https://ukur.example/siriMessages/Ukur-test", requestor)

	m := store.NewMemoryMap()
	stale := time.Now().Add(-model.LivenessThreshold - time.Minute)
	if err := m.Set(context.Background(), model.LastReceivedKey(string(siri.KindET)), strconv.FormatInt(stale.UnixMilli(), 10)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	checker := NewLivenessChecker(m, renewer, []siri.SubscriptionKind{siri.KindET})
	checker.Check(context.Background())

	if atomic.LoadInt32(&renewCount) != 1 {
		t.Errorf("expected exactly one renew for a stale feed, got %d", renewCount)
	}
}

func TestLivenessChecker_Check_SkipsFreshFeed(t *testing.T) {
	var renewCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&renewCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := ansharclient.New(1000, 1000, time.Second)
	requestor := newTestRequestor("Ukur-test")
	renewer := NewRenewer(client, srv.URL, "https://ukur.example/siriMessages/Ukur-test", requestor)

	m := store.NewMemoryMap()
	fresh := time.Now().Add(-time.Second)
	if err := m.Set(context.Background(), model.LastReceivedKey(string(siri.KindET)), strconv.FormatInt(fresh.UnixMilli(), 10)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	checker := NewLivenessChecker(m, renewer, []siri.SubscriptionKind{siri.KindET})
	checker.Check(context.Background())

	if atomic.LoadInt32(&renewCount) != 0 {
		t.Errorf("expected no renew for a feed that received recently, got %d", renewCount)
	}
}

func TestLivenessChecker_Check_NeverReceivedDoesNotRenew(t *testing.T) {
	var renewCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&renewCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := ansharclient.New(1000, 1000, time.Second)
	requestor := newTestRequestor("Ukur-test")
	renewer := NewRenewer(client, srv.URL, "https://ukur.example/siriMessages/Ukur-test", requestor)

	m := store.NewMemoryMap()
	checker := NewLivenessChecker(m, renewer, []siri.SubscriptionKind{siri.KindET, siri.KindSX})
	checker.Check(context.Background())

	if atomic.LoadInt32(&renewCount) != 0 {
		t.Errorf("expected no renew when a kind has never recorded a delivery, got %d", renewCount)
	}
}

func TestResolve_PutIfAbsentWinnerIsSharedAcrossReplicas(t *testing.T) {
	m := store.NewMemoryMap()

	first, err := Resolve(context.Background(), m, "Ukur-replica-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := Resolve(context.Background(), m, "Ukur-replica-2")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if first.Value() != "Ukur-replica-1" {
		t.Errorf("expected the first resolver to win its own candidate, got %q", first.Value())
	}
	if second.Value() != first.Value() {
		t.Errorf("expected second replica to read back the winner %q, got %q", first.Value(), second.Value())
	}
}
