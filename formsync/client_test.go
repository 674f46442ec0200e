package formsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_FetchSubmissions(t *testing.T) {
	var gotAuth, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/integration/submissions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"s-1","employeeId":"E-1","workDate":"2024-03-04","documentType":"RS",
			"startTime":"07:00:00","positions":[{"code":"P1","quantity":"2.5","pricePerUnit":"35"}],
			"attachments":[{"id":"a1","kind":"photo","s3Key":"k/1.jpg","filename":"1.jpg","bytes":12}],
			"updatedAt":"2024-03-04T18:00:00Z"}]`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/", "tok", 6000)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	after := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	subs, err := client.FetchSubmissions(context.Background(), DocumentTypeRs, "2024-03-01", "2024-03-07", &after)
	if err != nil {
		t.Fatalf("FetchSubmissions: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	for _, want := range []string{"documentType=RS", "from=2024-03-01", "to=2024-03-07", "updatedAfter=2024-03-01T00%3A00%3A00Z"} {
		if !strings.Contains(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
	if len(subs) != 1 || subs[0].ID != "s-1" || len(subs[0].Positions) != 1 {
		t.Fatalf("unexpected submissions %+v", subs)
	}

	rs, err := subs[0].toRs()
	if err != nil {
		t.Fatalf("toRs: %v", err)
	}
	if rs.StartTime == nil || rs.StartTime.String() != "07:00" {
		t.Fatalf("start = %v", rs.StartTime)
	}
	if got := rs.Positions[0].Amount().StringFixed(2); got != "87.50" {
		t.Fatalf("amount = %s", got)
	}
	if len(rs.Attachments) != 1 || rs.Attachments[0].Kind != "PHOTO" || rs.Attachments[0].Bytes != 12 {
		t.Fatalf("unexpected attachments %+v", rs.Attachments)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "tok", 6000)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	_, err = client.FetchEmployees(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestNewClient_RequiresToken(t *testing.T) {
	if _, err := NewClient("http://x", " ", 10); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
