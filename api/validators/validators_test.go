package validators

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"valid":        {header: "Bearer abc.def", want: "abc.def", ok: true},
		"lowercase":    {header: "bearer tok", want: "tok", ok: true},
		"missing":      {header: ""},
		"wrong scheme": {header: "Basic dXNlcg=="},
		"empty token":  {header: "Bearer   "},
	}
	for name, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, err := BearerToken(r)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%s: got %q, %v", name, got, err)
			}
			continue
		}
		if err != ErrInvalidToken {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

type createItemBody struct {
	Code      string `json:"code" validate:"required,max=8"`
	Condition string `json:"condition" validate:"required,oneof=GOOD DAMAGED"`
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"","condition":"BROKEN"}`))
	var body createItemBody
	err := DecodeJSONBody(r, &body)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["code"] != "is required" {
		t.Fatalf("unexpected code message %q", details["code"])
	}
	if details["condition"] != "must be one of [GOOD DAMAGED]" {
		t.Fatalf("unexpected condition message %q", details["condition"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"A1","condition":"GOOD","extra":1}`))
	var body createItemBody
	if err := DecodeJSONBody(r, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?withinDays=3&unread=true&bad=x&months=99", nil)

	days, err := ParseQueryIntPtr(r, "withinDays", 0, 365)
	if err != nil || days == nil || *days != 3 {
		t.Fatalf("unexpected withinDays %v %v", days, err)
	}
	missing, err := ParseQueryIntPtr(r, "absent", 0, 365)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for absent key, got %v %v", missing, err)
	}
	if _, err := ParseQueryInt(r, "months", 6, 1, 24); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range error, got %v", err)
	}
	unread, err := ParseQueryBool(r, "unread")
	if err != nil || !unread {
		t.Fatalf("unexpected unread %v %v", unread, err)
	}
	if _, err := ParseQueryBool(r, "bad"); err == nil {
		t.Fatal("expected error for non boolean value")
	}
}

func TestPathUUID(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("loanId", id.String())
	rctx.URLParams.Add("itemId", "nope")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	got, err := PathUUID(r, "loanId")
	if err != nil || got != id {
		t.Fatalf("unexpected id %s %v", got, err)
	}
	if _, err := PathUUID(r, "itemId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func multipartRequest(t *testing.T, fields map[string]string, fileField string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, "photo.png")
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestFormFile(t *testing.T) {
	r := multipartRequest(t, map[string]string{"description": "  cracked lens "}, "photo", []byte("data"))
	if err := ParseMultipart(httptest.NewRecorder(), r, 1024); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := FormValue(r, "description"); got != "cracked lens" {
		t.Fatalf("unexpected description %q", got)
	}
	file, err := FormFile(r, "photo")
	if err != nil || file == nil {
		t.Fatalf("expected file, got %v", err)
	}
	defer file.Close()
	data, _ := io.ReadAll(file)
	if string(data) != "data" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestFormFileEmptyOrMissing(t *testing.T) {
	r := multipartRequest(t, nil, "photo", nil)
	if err := ParseMultipart(httptest.NewRecorder(), r, 1024); err != nil {
		t.Fatalf("parse: %v", err)
	}
	file, err := FormFile(r, "photo")
	if err != nil || file != nil {
		t.Fatalf("expected empty part to be ignored, got %v %v", file, err)
	}
	file, err = FormFile(r, "other")
	if err != nil || file != nil {
		t.Fatalf("expected missing part to be ignored, got %v %v", file, err)
	}
}
