package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindConfiguration, http.StatusInternalServerError},
		{KindUnknown, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if got := New(tc.kind, "x").HTTPStatus(); got != tc.want {
			t.Errorf("kind %s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestGetKindFollowsWrappedErrors(t *testing.T) {
	base := Unavailable("registry unreachable")
	wrapped := fmt.Errorf("sync contractors: %w", base)

	if GetKind(wrapped) != KindUnavailable {
		t.Fatalf("expected unavailable kind, got %s", GetKind(wrapped))
	}
	if !Is(wrapped, KindUnavailable) {
		t.Fatal("expected Is to match wrapped kind")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected unknown kind for plain error")
	}
}
