package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind Kind
		want int
	}{
		{KindClientParameter, http.StatusBadRequest},
		{KindUnsupportedPath, http.StatusNotFound},
		{KindUpstreamAuth, http.StatusUnauthorized},
		{KindUpstreamConnection, http.StatusServiceUnavailable},
		{KindUpstreamTimeout, http.StatusGatewayTimeout},
		{KindUpstreamBusiness, http.StatusBadGateway},
		{KindUnexpected, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(New(tc.kind, "boom")); got != tc.want {
			t.Fatalf("HTTPStatus(kind=%d) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestKindOfSurvivesWrapping(t *testing.T) {
	t.Parallel()

	inner := New(KindUpstreamTimeout, "deadline exceeded")
	wrapped := fmt.Errorf("billing call: %w", inner)
	if got := KindOf(wrapped); got != KindUpstreamTimeout {
		t.Fatalf("KindOf(wrapped) = %d, want %d", got, KindUpstreamTimeout)
	}
	if !Retryable(wrapped) {
		t.Fatalf("Retryable(wrapped timeout) = false, want true")
	}
}

func TestKindOfPlainError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("plain")); got != KindUnexpected {
		t.Fatalf("KindOf(plain) = %d, want KindUnexpected", got)
	}
}

func TestPublicMessageHidesUnexpectedDetail(t *testing.T) {
	t.Parallel()

	err := Wrap(KindUnexpected, errors.New("nil pointer in projector"), "internal failure")
	if msg := PublicMessage(err); msg == "internal failure" {
		t.Fatalf("PublicMessage leaked internal detail: %q", msg)
	}

	param := New(KindClientParameter, "날짜 오류: 조회 시작일이 종료일보다 늦습니다.")
	if msg := PublicMessage(param); msg != param.Message {
		t.Fatalf("PublicMessage(param) = %q, want %q", msg, param.Message)
	}
}
