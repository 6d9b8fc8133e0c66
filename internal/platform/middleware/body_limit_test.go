package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseLimit(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"2M", 2 << 20},
		{"512K", 512 << 10},
		{"1G", 1 << 30},
		{"4096", 4096},
		{"", 1 << 20},
		{"garbage", 1 << 20},
	}
	for _, tc := range cases {
		if got := parseLimit(tc.in); got != tc.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestBodyLimit_RejectsDeclaredOversize(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/questionnaires", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = 64
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := BodyLimit("16")(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestBodyLimit_EnforcedDuringRead(t *testing.T) {
	e := echo.New()
	// No Content-Length, so the limit can only catch the body mid-read.
	req := httptest.NewRequest(http.MethodPost, "/questionnaires", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var readErr error
	h := BodyLimit("16")(func(c echo.Context) error {
		_, readErr = io.ReadAll(c.Request().Body)
		return readErr
	})

	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from the limited reader, got %v (read err %v)", err, readErr)
	}
}

func TestBodyLimit_SmallBodyPassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/questionnaires", strings.NewReader("small"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := BodyLimit("1M")(func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, string(body))
	})

	if err := h(c); err != nil {
		t.Fatalf("expected pass-through, got %v", err)
	}
	if rec.Body.String() != "small" {
		t.Errorf("body mangled: %q", rec.Body.String())
	}
}
