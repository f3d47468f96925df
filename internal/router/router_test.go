package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMethodDispatch(t *testing.T) {
	r := New()
	r.Get("/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("got " + req.PathValue("id")))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "got 42" {
		t.Fatalf("GET = %d %q", rec.Code, rec.Body.String())
	}

	// Same path, unregistered method.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders/42", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE = %d, want 405", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	tag := func(name string, trace *[]string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*trace = append(*trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	var trace []string
	r := New(tag("global", &trace))
	grp := r.Group(tag("group", &trace))
	grp.Post("/x", func(w http.ResponseWriter, req *http.Request) {
		trace = append(trace, "handler")
	}, tag("route", &trace))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))

	want := "global,group,route,handler"
	if got := strings.Join(trace, ","); got != want {
		t.Fatalf("execution order = %s, want %s", got, want)
	}
}

func TestRecoveryWritesJSONError(t *testing.T) {
	r := New(Recovery(discard()))
	r.Get("/boom", func(w http.ResponseWriter, req *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), `"internal"`) {
		t.Errorf("body = %s, want internal error envelope", rec.Body.String())
	}
}

func TestCORS(t *testing.T) {
	inner := New()
	inner.Post("/api/checkout", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CORS([]string{"https://shop.example.com"})(inner)

	// Preflight from the allowed origin short-circuits before the mux, so
	// the OPTIONS method needs no route.
	req := httptest.NewRequest(http.MethodOptions, "/api/checkout", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	// Unknown origins get no CORS headers at all.
	req = httptest.NewRequest(http.MethodPost, "/api/checkout", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for unknown origin = %q, want empty", got)
	}
}
