package router_test

import (
	"errors"
	"testing"

	"transcriber/internal/logging"
	"transcriber/internal/router"
)

type authFlag bool

func (a authFlag) IsAuthenticated() bool { return bool(a) }

func TestGuardRedirectsWhenSignedOut(t *testing.T) {
	r := router.New(router.DefaultRoutes(), logging.NewNop())
	r.Bind(authFlag(false))

	decision, err := r.Resolve(router.Home)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !decision.Redirected || decision.Route.Name != router.Login {
		t.Fatalf("expected redirect to login, got %+v", decision)
	}

	if err := r.Navigate(router.Transcription); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if r.Current() != router.Login {
		t.Fatalf("expected current login, got %q", r.Current())
	}
}

func TestGuardAllowsSignedIn(t *testing.T) {
	r := router.New(router.DefaultRoutes(), logging.NewNop())
	r.Bind(authFlag(true))

	if err := r.Navigate(router.Home); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if r.Current() != router.Home {
		t.Fatalf("expected home, got %q", r.Current())
	}
}

func TestUnboundRouterRedirectsProtectedRoutes(t *testing.T) {
	r := router.New(router.DefaultRoutes(), nil)
	decision, err := r.Resolve(router.Home)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !decision.Redirected {
		t.Fatal("expected redirect without auth checker")
	}
	decision, err = r.Resolve(router.Login)
	if err != nil || decision.Redirected {
		t.Fatalf("login must be reachable without auth, got %+v err=%v", decision, err)
	}
}

func TestNavigateUnknownRoute(t *testing.T) {
	r := router.New(router.DefaultRoutes(), nil)
	if err := r.Navigate("settings"); !errors.Is(err, router.ErrUnknownRoute) {
		t.Fatalf("expected ErrUnknownRoute, got %v", err)
	}
	if r.Current() != "" {
		t.Fatalf("expected no current route, got %q", r.Current())
	}
}

func TestMatchAndPathFor(t *testing.T) {
	r := router.New(router.DefaultRoutes(), nil)

	route, params, ok := r.Match("/transcription/abc-123")
	if !ok || route.Name != router.Transcription || params["id"] != "abc-123" {
		t.Fatalf("unexpected match %+v %v ok=%v", route, params, ok)
	}
	route, _, ok = r.Match("/")
	if !ok || route.Name != router.Home {
		t.Fatalf("expected home match, got %+v ok=%v", route, ok)
	}
	if _, _, ok := r.Match("/transcription"); ok {
		t.Fatal("expected no match without id")
	}

	path, err := r.PathFor(router.Transcription, map[string]string{"id": "x9"})
	if err != nil || path != "/transcription/x9" {
		t.Fatalf("unexpected path %q err=%v", path, err)
	}
	if _, err := r.PathFor(router.Transcription, nil); err == nil {
		t.Fatal("expected missing parameter error")
	}
}

func TestHistoryRecordsNavigation(t *testing.T) {
	r := router.New(router.DefaultRoutes(), nil)
	r.Bind(authFlag(true))
	_ = r.Navigate(router.Home)
	_ = r.Navigate(router.Login)

	history := r.History()
	if len(history) != 2 || history[0] != router.Home || history[1] != router.Login {
		t.Fatalf("unexpected history %v", history)
	}
}
