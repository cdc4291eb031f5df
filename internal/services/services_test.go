package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
)

func TestNextBackupRun(t *testing.T) {
	// Wednesday 2025-01-15 10:00 local time
	from := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)

	tests := []struct {
		frequency string
		want      time.Time
	}{
		{"daily", time.Date(2025, 1, 16, 3, 0, 0, 0, time.Local)},
		{"weekly", time.Date(2025, 1, 19, 3, 0, 0, 0, time.Local)},
		{"monthly", time.Date(2025, 2, 1, 3, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		got, err := NextBackupRun(tt.frequency, from)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.frequency, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.frequency, got, tt.want)
		}
	}

	if _, err := NextBackupRun("hourly", from); err == nil {
		t.Error("expected error for unknown frequency")
	}
	if ValidBackupFrequency("yearly") {
		t.Error("yearly should not be a valid frequency")
	}
}

func TestParseAllowedIPs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"blank entries", " , \n ,", nil},
		{"comma", "10.0.0.1, 10.0.0.2", []string{"10.0.0.1", "10.0.0.2"}},
		{"newline", "10.0.0.1\n10.0.0.0/24\n", []string{"10.0.0.1", "10.0.0.0/24"}},
		{"duplicates kept", "1.1.1.1,1.1.1.1", []string{"1.1.1.1", "1.1.1.1"}},
		{"wildcard", "*", []string{"*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAllowedIPs(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	if !AllowsAnyIP(nil) || !AllowsAnyIP([]string{"10.0.0.1", "*"}) {
		t.Error("nil list and wildcard should be unrestricted")
	}
	if AllowsAnyIP([]string{"10.0.0.1"}) {
		t.Error("explicit list should be restricted")
	}
}

func TestParseMetadata(t *testing.T) {
	m, err := ParseMetadata(`{"team":"ops","tier":2}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["team"] != "ops" {
		t.Errorf("expected team=ops, got %v", m["team"])
	}

	if m, err := ParseMetadata("   "); err != nil || m != nil {
		t.Errorf("blank input should yield nil, got %v, %v", m, err)
	}

	for _, bad := range []string{"[1,2]", "null", "{broken", `"text"`} {
		if _, err := ParseMetadata(bad); !errors.Is(err, ErrMetadata) {
			t.Errorf("%q: expected ErrMetadata, got %v", bad, err)
		}
	}
}

func TestCleanObject(t *testing.T) {
	in := map[string]interface{}{
		"title":    "CortexUI",
		"subtitle": "",
		"logo":     nil,
		"contact": map[string]interface{}{
			"mail":  "",
			"phone": nil,
		},
		"nested": map[string]interface{}{
			"keep": "x",
			"drop": "",
		},
		"tags":      []interface{}{"", "a"},
		"showTitle": false,
	}

	got, err := CleanObject(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, k := range []string{"subtitle", "logo", "contact"} {
		if _, ok := got[k]; ok {
			t.Errorf("%s should have been removed", k)
		}
	}
	nested := got["nested"].(map[string]interface{})
	if _, ok := nested["drop"]; ok || nested["keep"] != "x" {
		t.Errorf("nested object not cleaned: %v", nested)
	}
	if tags := got["tags"].([]interface{}); len(tags) != 2 {
		t.Errorf("arrays should be kept untouched, got %v", tags)
	}
	if got["showTitle"] != false {
		t.Error("false booleans must survive")
	}
}

func TestUnchanged(t *testing.T) {
	type pair struct {
		A string   `json:"a"`
		B []string `json:"b,omitempty"`
	}
	if !Unchanged(pair{A: "x"}, pair{A: "x", B: []string{}}) {
		t.Error("nil and empty slices should compare equal")
	}
	if Unchanged(pair{A: "x"}, pair{A: "y"}) {
		t.Error("different values should not compare equal")
	}
}

func TestLogoFromUpload(t *testing.T) {
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

	logo, err := LogoFromUpload("Brand.PNG", png, "1736935200000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logo.ContentType != "image/png" {
		t.Errorf("expected image/png, got %s", logo.ContentType)
	}
	if !strings.HasPrefix(logo.Data, "data:image/png;base64,") {
		t.Errorf("unexpected data URL prefix: %.30s", logo.Data)
	}
	if logo.LastModified != "1736935200000" {
		t.Errorf("unexpected lastModified %q", logo.LastModified)
	}

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	if _, err := LogoFromUpload("logo.svg", svg, ""); err != nil {
		t.Errorf("svg should be accepted: %v", err)
	}

	if _, err := LogoFromUpload("logo.gif", png, ""); !errors.Is(err, ErrLogoType) {
		t.Errorf("expected ErrLogoType for gif, got %v", err)
	}
	if _, err := LogoFromUpload("logo.png", []byte("plain text"), ""); !errors.Is(err, ErrLogoType) {
		t.Errorf("expected ErrLogoType for mislabelled content, got %v", err)
	}
	big := append(png, make([]byte, MaxLogoSize)...)
	if _, err := LogoFromUpload("logo.png", big, ""); !errors.Is(err, ErrLogoTooLarge) {
		t.Errorf("expected ErrLogoTooLarge, got %v", err)
	}
}

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error { return p.err }

func TestBackendMonitor_Check(t *testing.T) {
	hub := NewStatusHub()
	events := hub.Subscribe("test")
	pinger := &stubPinger{}
	m := NewBackendMonitor(pinger, 10*time.Second, hub)

	if m.Status().Checked {
		t.Fatal("status should be unchecked before the first ping")
	}
	if m.Spec() != "@every 10s" {
		t.Errorf("unexpected spec %q", m.Spec())
	}

	if st := m.Check(context.Background()); !st.Online || st.ErrorMessage != "" {
		t.Errorf("expected online status, got %+v", st)
	}
	<-events

	pinger.err = &apiclient.APIError{StatusCode: 502}
	st := m.Check(context.Background())
	if st.Online {
		t.Fatal("expected offline status")
	}
	if st.ErrorMessage != "Server nicht erreichbar. Versuche erneut in 10 Sekunden." {
		t.Errorf("unexpected message %q", st.ErrorMessage)
	}
	if got := <-events; got.Online {
		t.Error("hub should receive the offline transition")
	}

	pinger.err = errors.New("dial tcp: connection refused")
	st = m.Check(context.Background())
	if st.ErrorMessage != "Verbindung zum API Server fehlgeschlagen. Versuche erneut in 10 Sekunden." {
		t.Errorf("unexpected message %q", st.ErrorMessage)
	}
	select {
	case <-events:
		t.Error("no event expected while staying offline")
	default:
	}
}

func TestScheduler(t *testing.T) {
	s := NewScheduler()
	var runs int32

	if err := s.Add("tick", "@every 1s", func() { atomic.AddInt32(&runs, 1) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Add("tick", "@every 1s", func() { atomic.AddInt32(&runs, 1) }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Jobs() != 1 {
		t.Errorf("re-adding a job should replace it, got %d jobs", s.Jobs())
	}
	if err := s.Add("bad", "not a spec", func() {}); err == nil {
		t.Error("expected error for invalid spec")
	}

	s.Start()
	time.Sleep(1500 * time.Millisecond)
	s.Stop()

	if n := atomic.LoadInt32(&runs); n < 1 {
		t.Errorf("expected the job to run, ran %d times", n)
	}
}

type claimOnce struct {
	claimed map[string]bool
	err     error
}

func (c *claimOnce) ClaimRun(job, window string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	key := job + "/" + window
	if c.claimed[key] {
		return false, nil
	}
	c.claimed[key] = true
	return true, nil
}

func TestExclusive(t *testing.T) {
	claimer := &claimOnce{claimed: map[string]bool{}}
	var runs int32
	job := Exclusive(claimer, "audit-purge", 24*time.Hour, func() { atomic.AddInt32(&runs, 1) })

	job()
	job()
	if n := atomic.LoadInt32(&runs); n != 1 {
		t.Errorf("expected one run per window, got %d", n)
	}

	claimer.err = errors.New("db locked")
	Exclusive(claimer, "session-purge", time.Hour, func() { atomic.AddInt32(&runs, 1) })()
	if n := atomic.LoadInt32(&runs); n != 1 {
		t.Errorf("job must not run when the claim fails, got %d runs", n)
	}
}

func TestLicenseHTML(t *testing.T) {
	html, err := LicenseHTML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(html), "Apache License") {
		t.Error("license should mention the Apache License")
	}

	out, err := RenderMarkdown([]byte("# Title\n\n<script>alert(1)</script>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "<script>") {
		t.Error("script tags must be stripped")
	}
	if !strings.Contains(string(out), "<h1") {
		t.Error("expected a heading")
	}
}
